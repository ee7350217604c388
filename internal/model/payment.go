package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

const DefaultCurrency = "usd"

// payments
type Payment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CustomerID  uuid.UUID     `gorm:"type:uuid;not null;index"`
	AmountCents int64         `gorm:"not null"`
	Currency    string        `gorm:"type:varchar(8);not null;default:'usd'"`
	Method      string        `gorm:"type:varchar(32);not null"`
	Status      PaymentStatus `gorm:"type:varchar(32);not null;index"`

	// Идентификатор платежа на стороне шлюза.
	ExternalRef *string `gorm:"type:varchar(255)"`

	// Ровно одно из полей заполнено.
	ReservationID *uuid.UUID `gorm:"type:uuid;index"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index"`

	SettledAt  *time.Time
	RefundedAt *time.Time

	CreatedAt time.Time `gorm:"not null;<-:create"`
	UpdatedAt time.Time `gorm:"not null"`

	Reservation *Reservation `gorm:"foreignKey:ReservationID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Order       *Order       `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return nil
}
