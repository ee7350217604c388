package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ресторана.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Table{},
		&FoodItem{},
		&Reservation{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&Event{},
	)
}
