package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

type FoodItemFilter struct {
	Category  string
	Available *bool
}

type FoodItemRepository interface {
	Create(ctx context.Context, item *model.FoodItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FoodItem, error)
	// Позиции по списку ID; отсутствующие просто не попадают в результат.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.FoodItem, error)
	List(ctx context.Context, filter FoodItemFilter) ([]model.FoodItem, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int64) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type GormFoodItemRepository struct {
	db *gorm.DB
}

func NewGormFoodItemRepository(db *gorm.DB) *GormFoodItemRepository {
	return &GormFoodItemRepository{db: db}
}

func (r *GormFoodItemRepository) Create(ctx context.Context, item *model.FoodItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormFoodItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FoodItem, error) {
	var f model.FoodItem
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *GormFoodItemRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.FoodItem, error) {
	if len(ids) == 0 {
		return []model.FoodItem{}, nil
	}
	var items []model.FoodItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormFoodItemRepository) List(ctx context.Context, filter FoodItemFilter) ([]model.FoodItem, error) {
	q := r.db.WithContext(ctx).Model(&model.FoodItem{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Available != nil {
		q = q.Where("available = ?", *filter.Available)
	}

	var items []model.FoodItem
	if err := q.Order("category ASC").Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormFoodItemRepository) UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int64) error {
	return r.updateColumn(ctx, id, "price_cents", priceCents)
}

func (r *GormFoodItemRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return r.updateColumn(ctx, id, "available", available)
}

func (r *GormFoodItemRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	res := r.db.WithContext(ctx).
		Model(&model.FoodItem{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
