package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

func (f *fixture) menuItem(t *testing.T, name string, priceCents int64) *model.FoodItem {
	t.Helper()
	item, err := f.engine.Menu.CreateFoodItem(context.Background(), CreateFoodItemRequest{
		Name:       name,
		PriceCents: priceCents,
		Category:   "mains",
	})
	if err != nil {
		t.Fatalf("create food item %s: %v", name, err)
	}
	return item
}

func TestCreateOrder_SnapshotTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.menuItem(t, "pasta", 1000)
	salad := f.menuItem(t, "salad", 550)

	order, err := f.engine.Orders.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: uuid.New(),
		Items: []OrderLine{
			{FoodItemID: pasta.ID, Quantity: 2},
			{FoodItemID: salad.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TotalCents != 2550 {
		t.Fatalf("expected 2550, got %d", order.TotalCents)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}

	if _, err := f.engine.Menu.UpdatePrice(ctx, pasta.ID, 1500); err != nil {
		t.Fatalf("update price: %v", err)
	}

	stored, err := f.engine.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.TotalCents != 2550 {
		t.Fatalf("expected stored total to stay 2550, got %d", stored.TotalCents)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(stored.Items))
	}
	var sum int64
	for _, it := range stored.Items {
		sum += it.LineTotalCents()
		if it.FoodItemID == pasta.ID && (it.UnitPriceCents != 1000 || it.Name != "pasta") {
			t.Fatalf("expected pasta snapshot at 1000, got %d %q", it.UnitPriceCents, it.Name)
		}
	}
	if sum != stored.TotalCents {
		t.Fatalf("lines sum to %d, total is %d", sum, stored.TotalCents)
	}
}

func TestCreateOrder_RejectsBadLinesAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.menuItem(t, "pasta", 1000)
	soup := f.menuItem(t, "soup", 700)
	caviar := f.menuItem(t, "caviar", math.MaxInt64/1000+1)
	if _, err := f.engine.Menu.SetAvailability(ctx, soup.ID, false); err != nil {
		t.Fatalf("set availability: %v", err)
	}

	cases := []struct {
		name  string
		items []OrderLine
		want  error
	}{
		{name: "unknown item", items: []OrderLine{{FoodItemID: pasta.ID, Quantity: 1}, {FoodItemID: uuid.New(), Quantity: 1}}, want: ErrNotFound},
		{name: "zero quantity", items: []OrderLine{{FoodItemID: pasta.ID, Quantity: 0}}, want: ErrInvalidRequest},
		{name: "unavailable item", items: []OrderLine{{FoodItemID: pasta.ID, Quantity: 1}, {FoodItemID: soup.ID, Quantity: 1}}, want: ErrInvalidRequest},
		{name: "no items", items: []OrderLine{}, want: ErrInvalidRequest},
		{name: "quantity over limit", items: []OrderLine{{FoodItemID: pasta.ID, Quantity: 1001}}, want: ErrInvalidRequest},
		{name: "line total overflows", items: []OrderLine{{FoodItemID: caviar.ID, Quantity: 1000}}, want: ErrInvalidRequest},
		{name: "order total overflows", items: []OrderLine{{FoodItemID: caviar.ID, Quantity: 600}, {FoodItemID: caviar.ID, Quantity: 600}}, want: ErrInvalidRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.engine.Orders.CreateOrder(ctx, CreateOrderRequest{CustomerID: uuid.New(), Items: c.items})
			if !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}

	var orders, lines int64
	f.gdb.Model(&model.Order{}).Count(&orders)
	f.gdb.Model(&model.OrderItem{}).Count(&lines)
	if orders != 0 || lines != 0 {
		t.Fatalf("expected nothing written, got %d orders and %d lines", orders, lines)
	}
}

func TestAdvanceStatus_ForwardOnly(t *testing.T) {
	all := []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
	}
	paths := map[model.OrderStatus][]model.OrderStatus{
		model.OrderStatusPending:   nil,
		model.OrderStatusPreparing: {model.OrderStatusPreparing},
		model.OrderStatusReady:     {model.OrderStatusPreparing, model.OrderStatusReady},
		model.OrderStatusDelivered: {model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusDelivered},
		model.OrderStatusCancelled: {model.OrderStatusCancelled},
	}
	legal := map[[2]model.OrderStatus]bool{
		{model.OrderStatusPending, model.OrderStatusPreparing}:   true,
		{model.OrderStatusPreparing, model.OrderStatusReady}:     true,
		{model.OrderStatusReady, model.OrderStatusDelivered}:     true,
		{model.OrderStatusPending, model.OrderStatusCancelled}:   true,
		{model.OrderStatusPreparing, model.OrderStatusCancelled}: true,
	}

	f := newFixture(t)
	ctx := context.Background()
	pasta := f.menuItem(t, "pasta", 1000)

	for _, from := range all {
		for _, to := range all {
			order, err := f.engine.Orders.CreateOrder(ctx, CreateOrderRequest{
				CustomerID: uuid.New(),
				Items:      []OrderLine{{FoodItemID: pasta.ID, Quantity: 1}},
			})
			if err != nil {
				t.Fatalf("create order: %v", err)
			}
			for _, step := range paths[from] {
				if _, err := f.engine.Orders.AdvanceStatus(ctx, order.ID, step); err != nil {
					t.Fatalf("drive to %s: %v", step, err)
				}
			}

			_, err = f.engine.Orders.AdvanceStatus(ctx, order.ID, to)
			stored, gerr := f.engine.Orders.GetOrder(ctx, order.ID)
			if gerr != nil {
				t.Fatalf("get order: %v", gerr)
			}
			if legal[[2]model.OrderStatus{from, to}] {
				if err != nil || stored.Status != to {
					t.Fatalf("%s -> %s: expected success, got %v (status %s)", from, to, err, stored.Status)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected invalid transition, got %v", from, to, err)
			}
			if stored.Status != from {
				t.Fatalf("%s -> %s: status changed to %s", from, to, stored.Status)
			}
		}
	}
}

func TestListOrdersAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.menuItem(t, "pasta", 1000)
	customer := uuid.New()
	room := "12B"

	mine, err := f.engine.Orders.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: customer,
		Items:      []OrderLine{{FoodItemID: pasta.ID, Quantity: 3}},
		RoomNumber: &room,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	other, err := f.engine.Orders.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: uuid.New(),
		Items:      []OrderLine{{FoodItemID: pasta.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := f.engine.Orders.AdvanceStatus(ctx, other.ID, model.OrderStatusPreparing); err != nil {
		t.Fatalf("advance: %v", err)
	}

	page, err := f.engine.Orders.ListOrders(ctx, OrderFilter{CustomerID: &customer})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != mine.ID || len(page.Items[0].Items) != 1 {
		t.Fatalf("expected the customer's order with its line, got %d", page.Total)
	}
	if page.Items[0].RoomNumber == nil || *page.Items[0].RoomNumber != room {
		t.Fatalf("expected room number %q", room)
	}

	page, err = f.engine.Orders.ListOrders(ctx, OrderFilter{Status: model.OrderStatusPreparing})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != other.ID {
		t.Fatalf("expected the preparing order, got %d", page.Total)
	}

	if err := f.engine.Orders.DeleteOrder(ctx, mine.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.engine.Orders.GetOrder(ctx, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var lines int64
	f.gdb.Model(&model.OrderItem{}).Where("order_id = ?", mine.ID).Count(&lines)
	if lines != 0 {
		t.Fatalf("expected lines to be deleted with the order, got %d", lines)
	}
	if err := f.engine.Orders.DeleteOrder(ctx, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if n := len(f.sink.OfType(model.EventTypeOrderDeleted)); n != 1 {
		t.Fatalf("expected one delete event, got %d", n)
	}
}

func TestMenuService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unavailable := false

	f.menuItem(t, "pasta", 1000)
	tea, err := f.engine.Menu.CreateFoodItem(ctx, CreateFoodItemRequest{
		Name:       "tea",
		PriceCents: 300,
		Category:   "drinks",
		Available:  &unavailable,
	})
	if err != nil {
		t.Fatalf("create tea: %v", err)
	}
	if tea.Available {
		t.Fatalf("expected tea to be unavailable")
	}

	stored, err := f.engine.Menu.GetFoodItem(ctx, tea.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Available {
		t.Fatalf("expected stored tea to be unavailable")
	}

	drinks, err := f.engine.Menu.ListFoodItems(ctx, FoodItemFilter{Category: "drinks"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drinks) != 1 || drinks[0].ID != tea.ID {
		t.Fatalf("expected only tea, got %d", len(drinks))
	}

	available := true
	items, err := f.engine.Menu.ListFoodItems(ctx, FoodItemFilter{Available: &available})
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(items) != 1 || items[0].Name != "pasta" {
		t.Fatalf("expected only pasta, got %d", len(items))
	}

	if _, err := f.engine.Menu.UpdatePrice(ctx, tea.ID, -1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := f.engine.Menu.UpdatePrice(ctx, uuid.New(), 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.engine.Menu.CreateFoodItem(ctx, CreateFoodItemRequest{PriceCents: 100}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for a nameless item, got %v", err)
	}
}
