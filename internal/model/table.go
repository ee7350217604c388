package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус стола в зале.
type TableStatus string

const (
	TableStatusAvailable   TableStatus = "available"
	TableStatusOccupied    TableStatus = "occupied"
	TableStatusReserved    TableStatus = "reserved"
	TableStatusMaintenance TableStatus = "maintenance"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved, TableStatusMaintenance:
		return true
	}
	return false
}

// restaurant_tables
type Table struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Номер стола в зале, уникален.
	Number   int         `gorm:"not null;uniqueIndex"`
	Capacity int         `gorm:"not null"`
	Status   TableStatus `gorm:"type:varchar(32);not null;default:'available';index"`

	Location    string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Table) TableName() string {
	return "restaurant_tables"
}

func (t *Table) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TableStatusAvailable
	}
	return nil
}
