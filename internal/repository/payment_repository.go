package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

type PaymentFilter struct {
	CustomerID *uuid.UUID
	Status     model.PaymentStatus
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// SELECT ... FOR UPDATE; SQLite блокирует всю базу на запись и клаузу игнорирует.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// Перевод статуса только из from; changes дописываются в тот же UPDATE.
	TransitionStatus(
		ctx context.Context,
		id uuid.UUID,
		from, to model.PaymentStatus,
		changes map[string]any,
	) error
	List(ctx context.Context, filter PaymentFilter, limit, offset int) ([]model.Payment, int64, error)
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPaymentRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.PaymentStatus,
	changes map[string]any,
) error {
	update := map[string]any{"status": to}
	for k, v := range changes {
		update[k] = v
	}
	return guarded(r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update))
}

func (r *GormPaymentRepository) List(
	ctx context.Context,
	filter PaymentFilter,
	limit, offset int,
) ([]model.Payment, int64, error) {
	var (
		payments []model.Payment
		total    int64
	)

	q := r.db.WithContext(ctx).Model(&model.Payment{})
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

	if err := q.Order("created_at DESC").Order("id ASC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
