package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/calendar"
	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
	"github.com/Leganyst/restaurant-platform/internal/statemachine"
)

// OrderService runs the kitchen workflow. Orders do not touch table status.
type OrderService struct {
	*deps
}

type OrderLine struct {
	FoodItemID uuid.UUID `json:"food_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gte=1,lte=1000"`
}

type CreateOrderRequest struct {
	CustomerID uuid.UUID   `json:"customer_id" validate:"required"`
	Items      []OrderLine `json:"items" validate:"required,min=1,dive"`
	RoomNumber *string     `json:"room_number" validate:"omitempty,max=32"`
}

type OrderFilter struct {
	CustomerID *uuid.UUID        `json:"customer_id"`
	Status     model.OrderStatus `json:"status" validate:"omitempty,oneof=pending preparing ready delivered cancelled"`
	Page       int               `json:"page" validate:"gte=0"`
	PageSize   int               `json:"page_size" validate:"gte=0"`
}

// CreateOrder prices every line from the current menu and stores the order
// with its lines in one transaction. Later menu edits do not change it.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	const op = "order.create"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, line := range req.Items {
		if !seen[line.FoodItemID] {
			seen[line.FoodItemID] = true
			ids = append(ids, line.FoodItemID)
		}
	}

	order := &model.Order{
		CustomerID: req.CustomerID,
		Status:     model.OrderStatusPending,
		RoomNumber: req.RoomNumber,
		Items:      make([]model.OrderItem, 0, len(req.Items)),
	}

	var msgs []events.Message
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		menu, err := tx.FoodItems().ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.FoodItem, len(menu))
		for _, f := range menu {
			byID[f.ID] = f
		}

		for i, line := range req.Items {
			item, ok := byID[line.FoodItemID]
			if !ok {
				e := notFound(op, "food_item", line.FoodItemID.String())
				e.Fields = map[string]string{"line": strconv.Itoa(i)}
				return e
			}
			if !item.Available {
				e := invalidRequest(op, "food item "+strconv.Quote(item.Name)+" is unavailable", nil)
				e.Entity, e.ID = "food_item", item.ID.String()
				e.Fields = map[string]string{"line": strconv.Itoa(i)}
				return e
			}
			orderItem := model.OrderItem{
				FoodItemID:     item.ID,
				Name:           item.Name,
				Quantity:       line.Quantity,
				UnitPriceCents: item.PriceCents,
			}
			if item.PriceCents > 0 && int64(line.Quantity) > (math.MaxInt64-order.TotalCents)/item.PriceCents {
				e := invalidRequest(op, "order total overflows", nil)
				e.Fields = map[string]string{"line": strconv.Itoa(i)}
				return e
			}
			order.Items = append(order.Items, orderItem)
			order.TotalCents += orderItem.LineTotalCents()
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		msgs = append(msgs, events.New(s.now(), model.EventTypeOrderCreated, "order", order.ID, map[string]any{
			"customer_id": order.CustomerID.String(),
			"total_cents": order.TotalCents,
			"lines":       len(order.Items),
		}))
		return s.record(ctx, tx, msgs...)
	})
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "order created",
		slog.String("order_id", order.ID.String()),
		slog.Int64("total_cents", order.TotalCents),
		slog.Int("lines", len(order.Items)),
	)
	s.publish(ctx, msgs)
	return order, nil
}

// AdvanceStatus moves an order forward, or cancels it before it is ready.
func (s *OrderService) AdvanceStatus(ctx context.Context, id uuid.UUID, to model.OrderStatus) (*model.Order, error) {
	const op = "order.advance_status"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, invalidRequest(op, "unknown order status "+strconv.Quote(string(to)), nil)
	}

	var (
		order *model.Order
		from  model.OrderStatus
		msgs  []events.Message
	)
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		o, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if err := statemachine.Order.Check(from, to); err != nil {
			return invalidTransition(op, "order", id.String(), err)
		}
		if err := tx.Orders().TransitionStatus(ctx, id, from, to); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return transitionRefused(op, "order", id.String(), string(from), string(to), "status changed concurrently")
			}
			return err
		}
		o.Status = to
		order = o
		msgs = append(msgs, events.New(s.now(), model.EventTypeOrderStatusChanged, "order", id, map[string]any{
			"from": string(from),
			"to":   string(to),
		}))
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "order", id.String())
	}
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "order status changed",
		slog.String("order_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	s.publish(ctx, msgs)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	const op = "order.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := s.store.Orders().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "order", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return o, nil
}

// ListOrders returns one page, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) (calendar.Page[model.Order], error) {
	const op = "order.list"
	if err := ctx.Err(); err != nil {
		return calendar.Page[model.Order]{}, err
	}
	if err := validateRequest(op, filter); err != nil {
		return calendar.Page[model.Order]{}, err
	}

	limit, offset := calendar.Offset(filter.Page, filter.PageSize)
	orders, total, err := s.store.Orders().List(ctx, repository.OrderFilter{
		CustomerID: filter.CustomerID,
		Status:     filter.Status,
	}, limit, offset)
	if err != nil {
		return calendar.Page[model.Order]{}, storageError(op, err)
	}
	return calendar.NewPage(orders, total, filter.Page, filter.PageSize), nil
}

// DeleteOrder removes the order together with its lines.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	const op = "order.delete"
	if err := ctx.Err(); err != nil {
		return err
	}

	var msgs []events.Message
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		o, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Orders().Delete(ctx, id); err != nil {
			return err
		}
		msgs = append(msgs, events.New(s.now(), model.EventTypeOrderDeleted, "order", id, map[string]any{
			"status":      string(o.Status),
			"total_cents": o.TotalCents,
		}))
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, "order", id.String())
	}
	if err != nil {
		return txError(op, err)
	}

	s.log.Info(op, "order deleted", slog.String("order_id", id.String()))
	s.publish(ctx, msgs)
	return nil
}
