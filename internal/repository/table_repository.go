package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

type TableFilter struct {
	Status      model.TableStatus
	MinCapacity int
	MaxCapacity int
}

type TableRepository interface {
	Create(ctx context.Context, table *model.Table) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Table, error)
	GetByNumber(ctx context.Context, number int) (*model.Table, error)
	// Список столов по фильтру, упорядочен по номеру.
	List(ctx context.Context, filter TableFilter) ([]model.Table, error)
	// Свободные столы, вмещающие partySize: сначала меньшие, затем по номеру.
	ListCandidates(ctx context.Context, partySize int) ([]model.Table, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TableStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormTableRepository struct {
	db *gorm.DB
}

func NewGormTableRepository(db *gorm.DB) *GormTableRepository {
	return &GormTableRepository{db: db}
}

func (r *GormTableRepository) Create(ctx context.Context, table *model.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *GormTableRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Table, error) {
	var t model.Table
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTableRepository) GetByNumber(ctx context.Context, number int) (*model.Table, error) {
	var t model.Table
	if err := r.db.WithContext(ctx).First(&t, "number = ?", number).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTableRepository) List(ctx context.Context, filter TableFilter) ([]model.Table, error) {
	q := r.db.WithContext(ctx).Model(&model.Table{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.MinCapacity > 0 {
		q = q.Where("capacity >= ?", filter.MinCapacity)
	}
	if filter.MaxCapacity > 0 {
		q = q.Where("capacity <= ?", filter.MaxCapacity)
	}

	var tables []model.Table
	if err := q.Order("number ASC").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *GormTableRepository) ListCandidates(ctx context.Context, partySize int) ([]model.Table, error) {
	var tables []model.Table
	err := r.db.WithContext(ctx).
		Where("status = ?", model.TableStatusAvailable).
		Where("capacity >= ?", partySize).
		Order("capacity ASC").
		Order("number ASC").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *GormTableRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TableStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Table{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormTableRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Table{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
