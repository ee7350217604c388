package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// food_items: позиции меню.
type FoodItem struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	PriceCents  int64  `gorm:"not null"`
	Category    string `gorm:"type:varchar(64);index"`

	Available          bool `gorm:"not null;default:true;index"`
	PreparationTimeMin *int `gorm:"type:integer"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (f *FoodItem) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
