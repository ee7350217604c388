package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

type ReservationFilter struct {
	CustomerID *uuid.UUID
	TableID    *uuid.UUID
	Status     model.ReservationStatus
	// Дата брони (полночь UTC, см. calendar.DateOf).
	Date *time.Time
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// Перевод статуса только из ожидаемого состояния from.
	TransitionStatus(
		ctx context.Context,
		id uuid.UUID,
		from, to model.ReservationStatus,
		cancelledAt *time.Time,
	) error
	List(ctx context.Context, filter ReservationFilter, limit, offset int) ([]model.Reservation, int64, error)
	// Активные брони стола, пересекающиеся с [from, to).
	ListOverlapping(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]model.Reservation, error)
	ListActiveByTable(ctx context.Context, tableID uuid.UUID) ([]model.Reservation, error)
	CountActiveByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
}

type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.ReservationStatus,
	cancelledAt *time.Time,
) error {
	update := map[string]any{
		"status": to,
	}
	if cancelledAt != nil {
		update["cancelled_at"] = *cancelledAt
	}
	return guarded(r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update))
}

func (r *GormReservationRepository) List(
	ctx context.Context,
	filter ReservationFilter,
	limit, offset int,
) ([]model.Reservation, int64, error) {
	var (
		reservations []model.Reservation
		total        int64
	)

	q := r.db.WithContext(ctx).Model(&model.Reservation{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.TableID != nil {
		q = q.Where("table_id = ?", *filter.TableID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Date != nil {
		q = q.Where("reservation_date = ?", datatypes.Date(*filter.Date))
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("starts_at ASC").Order("id ASC").Find(&reservations).Error; err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

func (r *GormReservationRepository) ListOverlapping(
	ctx context.Context,
	tableID uuid.UUID,
	from, to time.Time,
) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := r.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Where("status IN ?", model.ActiveReservationStatuses).
		Where("starts_at < ? AND ends_at > ?", to.UTC(), from.UTC()).
		Order("starts_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *GormReservationRepository) ListActiveByTable(ctx context.Context, tableID uuid.UUID) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := r.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Where("status IN ?", model.ActiveReservationStatuses).
		Order("starts_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *GormReservationRepository) CountActiveByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("table_id = ?", tableID).
		Where("status IN ?", model.ActiveReservationStatuses).
		Count(&n).Error
	return n, err
}
