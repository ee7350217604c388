package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// orders
type Order struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CustomerID uuid.UUID   `gorm:"type:uuid;not null;index"`
	Status     OrderStatus `gorm:"type:varchar(32);not null;index"`

	// Сумма в минимальных единицах валюты, фиксируется при создании.
	TotalCents int64   `gorm:"not null"`
	RoomNumber *string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"not null;<-:create"`
	UpdatedAt time.Time `gorm:"not null"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// order_items: строки заказа с ценой на момент оформления.
type OrderItem struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	FoodItemID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name           string `gorm:"type:varchar(255);not null"`
	Quantity       int    `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}
