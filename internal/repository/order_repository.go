package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

type OrderFilter struct {
	CustomerID *uuid.UUID
	Status     model.OrderStatus
}

type OrderRepository interface {
	// Создать заказ вместе со строками.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) error
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]model.Order, int64, error)
	// Удалить заказ и его строки.
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&o, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) error {
	return guarded(r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to))
}

func (r *GormOrderRepository) List(
	ctx context.Context,
	filter OrderFilter,
	limit, offset int,
) ([]model.Order, int64, error) {
	var (
		orders []model.Order
		total  int64
	)

	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Preload("Items").Order("created_at DESC").Order("id ASC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// SQLite не каскадирует без PRAGMA foreign_keys, удаляем строки явно.
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&model.Order{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
