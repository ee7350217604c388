package statemachine

import "github.com/Leganyst/restaurant-platform/internal/model"

// Reservation lifecycle: pending -> confirmed -> seated -> completed,
// cancellable from any non-terminal state.
var Reservation = New("reservation", []Transition[model.ReservationStatus]{
	{From: model.ReservationStatusPending, To: model.ReservationStatusConfirmed},
	{From: model.ReservationStatusConfirmed, To: model.ReservationStatusSeated},
	{From: model.ReservationStatusSeated, To: model.ReservationStatusCompleted},
	{From: model.ReservationStatusPending, To: model.ReservationStatusCancelled},
	{From: model.ReservationStatusConfirmed, To: model.ReservationStatusCancelled},
	{From: model.ReservationStatusSeated, To: model.ReservationStatusCancelled},
})

// Order lifecycle is strictly forward; the kitchen may only cancel before
// the order is ready.
var Order = New("order", []Transition[model.OrderStatus]{
	{From: model.OrderStatusPending, To: model.OrderStatusPreparing},
	{From: model.OrderStatusPreparing, To: model.OrderStatusReady},
	{From: model.OrderStatusReady, To: model.OrderStatusDelivered},
	{From: model.OrderStatusPending, To: model.OrderStatusCancelled},
	{From: model.OrderStatusPreparing, To: model.OrderStatusCancelled},
})

var Payment = New("payment", []Transition[model.PaymentStatus]{
	{From: model.PaymentStatusPending, To: model.PaymentStatusCompleted},
	{From: model.PaymentStatusPending, To: model.PaymentStatusFailed},
	{From: model.PaymentStatusCompleted, To: model.PaymentStatusRefunded},
})
