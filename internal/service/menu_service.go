package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
)

// MenuService owns the food item catalogue orders are priced from.
type MenuService struct {
	*deps
}

type CreateFoodItemRequest struct {
	Name               string `json:"name" validate:"required,max=255"`
	Description        string `json:"description"`
	PriceCents         int64  `json:"price_cents" validate:"gte=0"`
	Category           string `json:"category" validate:"max=64"`
	Available          *bool  `json:"available"`
	PreparationTimeMin *int   `json:"preparation_time_min" validate:"omitempty,gte=0"`
}

type FoodItemFilter struct {
	Category  string `json:"category"`
	Available *bool  `json:"available"`
}

func (s *MenuService) CreateFoodItem(ctx context.Context, req CreateFoodItemRequest) (*model.FoodItem, error) {
	const op = "menu.create_item"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	item := &model.FoodItem{
		Name:               req.Name,
		Description:        req.Description,
		PriceCents:         req.PriceCents,
		Category:           req.Category,
		Available:          true,
		PreparationTimeMin: req.PreparationTimeMin,
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		available := item.Available
		if err := tx.FoodItems().Create(ctx, item); err != nil {
			return err
		}
		if available {
			return nil
		}
		// default:true в схеме перетирает false при INSERT.
		item.Available = false
		return tx.FoodItems().SetAvailability(ctx, item.ID, false)
	})
	if err != nil {
		return nil, storageError(op, err)
	}

	s.log.Info(op, "food item created",
		slog.String("food_item_id", item.ID.String()),
		slog.String("name", item.Name),
		slog.Int64("price_cents", item.PriceCents),
	)
	return item, nil
}

func (s *MenuService) GetFoodItem(ctx context.Context, id uuid.UUID) (*model.FoodItem, error) {
	const op = "menu.get_item"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := s.store.FoodItems().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "food_item", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return item, nil
}

func (s *MenuService) ListFoodItems(ctx context.Context, filter FoodItemFilter) ([]model.FoodItem, error) {
	const op = "menu.list_items"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := s.store.FoodItems().List(ctx, repository.FoodItemFilter{
		Category:  filter.Category,
		Available: filter.Available,
	})
	if err != nil {
		return nil, storageError(op, err)
	}
	return items, nil
}

// UpdatePrice changes the live menu price. Orders already placed keep the
// price they were created with.
func (s *MenuService) UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int64) (*model.FoodItem, error) {
	const op = "menu.update_price"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if priceCents < 0 {
		return nil, invalidRequest(op, "price_cents must be at least 0 (got "+strconv.FormatInt(priceCents, 10)+")", nil)
	}
	if err := s.store.FoodItems().UpdatePrice(ctx, id, priceCents); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(op, "food_item", id.String())
		}
		return nil, storageError(op, err)
	}
	s.log.Info(op, "food item price changed",
		slog.String("food_item_id", id.String()),
		slog.Int64("price_cents", priceCents),
	)
	return s.GetFoodItem(ctx, id)
}

func (s *MenuService) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*model.FoodItem, error) {
	const op = "menu.set_availability"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.FoodItems().SetAvailability(ctx, id, available); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(op, "food_item", id.String())
		}
		return nil, storageError(op, err)
	}
	return s.GetFoodItem(ctx, id)
}
