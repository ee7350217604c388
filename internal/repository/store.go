package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrStaleStatus is returned by guarded status updates when the row is no
// longer in the expected state.
var ErrStaleStatus = errors.New("status changed concurrently")

// Store hands out repositories bound to one *gorm.DB, either the pool or an
// open transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn inside a transaction; repositories taken from tx share it.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Tables() TableRepository {
	return NewGormTableRepository(s.db)
}

func (s *Store) Reservations() ReservationRepository {
	return NewGormReservationRepository(s.db)
}

func (s *Store) FoodItems() FoodItemRepository {
	return NewGormFoodItemRepository(s.db)
}

func (s *Store) Orders() OrderRepository {
	return NewGormOrderRepository(s.db)
}

func (s *Store) Payments() PaymentRepository {
	return NewGormPaymentRepository(s.db)
}

func (s *Store) Events() EventRepository {
	return NewGormEventRepository(s.db)
}

func guarded(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
