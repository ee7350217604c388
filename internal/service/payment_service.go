package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/calendar"
	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
	"github.com/Leganyst/restaurant-platform/internal/statemachine"
)

// PaymentService links gateway outcomes to the reservation or order a
// payment was taken for.
type PaymentService struct {
	*deps
	reservations *ReservationService
}

// PaymentIntentRequest targets exactly one of ReservationID and OrderID.
type PaymentIntentRequest struct {
	CustomerID    uuid.UUID  `json:"customer_id" validate:"required"`
	AmountCents   int64      `json:"amount_cents" validate:"gt=0"`
	Currency      string     `json:"currency" validate:"omitempty,len=3,alpha"`
	Method        string     `json:"method" validate:"required,max=32"`
	ReservationID *uuid.UUID `json:"reservation_id" validate:"required_without=OrderID,excluded_with=OrderID"`
	OrderID       *uuid.UUID `json:"order_id" validate:"required_without=ReservationID"`
}

type PaymentFilter struct {
	CustomerID *uuid.UUID          `json:"customer_id"`
	Status     model.PaymentStatus `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	Page       int                 `json:"page" validate:"gte=0"`
	PageSize   int                 `json:"page_size" validate:"gte=0"`
}

// Settlement is the result of Settle. Warnings are ErrReconciliationWarning
// errors: the payment is settled but the linked entity needs a look.
type Settlement struct {
	Payment  *model.Payment
	Warnings []*Error
}

// Err joins the warnings, nil when the settlement is clean.
func (s *Settlement) Err() error {
	if s == nil || len(s.Warnings) == 0 {
		return nil
	}
	errs := make([]error, len(s.Warnings))
	for i, w := range s.Warnings {
		errs[i] = w
	}
	return errors.Join(errs...)
}

func (s *PaymentService) RecordIntent(ctx context.Context, req PaymentIntentRequest) (*model.Payment, error) {
	const op = "payment.record_intent"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		CustomerID:    req.CustomerID,
		AmountCents:   req.AmountCents,
		Currency:      strings.ToLower(req.Currency),
		Method:        req.Method,
		Status:        model.PaymentStatusPending,
		ReservationID: req.ReservationID,
		OrderID:       req.OrderID,
	}

	var msgs []events.Message
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if req.ReservationID != nil {
			if _, err := tx.Reservations().GetByID(ctx, *req.ReservationID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound(op, "reservation", req.ReservationID.String())
				}
				return err
			}
		}
		if req.OrderID != nil {
			if _, err := tx.Orders().GetByID(ctx, *req.OrderID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound(op, "order", req.OrderID.String())
				}
				return err
			}
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		msgs = append(msgs, events.New(s.now(), model.EventTypePaymentCreated, "payment", payment.ID, map[string]any{
			"amount_cents": payment.AmountCents,
			"currency":     payment.Currency,
			"target":       targetOf(payment),
		}))
		return s.record(ctx, tx, msgs...)
	})
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "payment intent recorded",
		slog.String("payment_id", payment.ID.String()),
		slog.Int64("amount_cents", payment.AmountCents),
		slog.String("target", targetOf(payment)),
	)
	s.publish(ctx, msgs)
	return payment, nil
}

// Settle applies the gateway outcome. On completed a pending reservation is
// confirmed in the same transaction; any status push that cannot apply is
// returned as a warning and the payment still settles.
func (s *PaymentService) Settle(
	ctx context.Context,
	id uuid.UUID,
	outcome model.PaymentStatus,
	externalRef string,
) (*Settlement, error) {
	const op = "payment.settle"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outcome != model.PaymentStatusCompleted && outcome != model.PaymentStatusFailed {
		return nil, invalidRequest(op, "outcome must be completed or failed, got "+strconv.Quote(string(outcome)), nil)
	}

	current, err := s.store.Payments().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "payment", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}

	// Подтверждение брони идёт под блокировкой её стола, как и в планировщике.
	if outcome == model.PaymentStatusCompleted && current.ReservationID != nil {
		r, err := s.store.Reservations().GetByID(ctx, *current.ReservationID)
		switch {
		case err == nil:
			unlock, err := s.locker.Lock(ctx, lock.TableKey(r.TableID.String()))
			if err != nil {
				return nil, err
			}
			defer unlock()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, storageError(op, err)
		}
	}

	result := &Settlement{}
	var msgs []events.Message
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		p, err := tx.Payments().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := statemachine.Payment.Check(p.Status, outcome); err != nil {
			return invalidTransition(op, "payment", id.String(), err)
		}

		now := s.now()
		changes := map[string]any{"settled_at": now}
		if externalRef != "" {
			changes["external_ref"] = externalRef
			p.ExternalRef = &externalRef
		}
		if err := tx.Payments().TransitionStatus(ctx, id, p.Status, outcome, changes); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return transitionRefused(op, "payment", id.String(), string(p.Status), string(outcome), "status changed concurrently")
			}
			return err
		}
		p.Status = outcome
		p.SettledAt = &now
		result.Payment = p
		msgs = append(msgs, events.New(s.now(), model.EventTypePaymentSettled, "payment", id, map[string]any{
			"outcome": string(outcome),
			"target":  targetOf(p),
		}))

		if outcome != model.PaymentStatusCompleted {
			return s.record(ctx, tx, msgs...)
		}

		var pushed []events.Message
		switch {
		case p.ReservationID != nil:
			pushed, result.Warnings, err = s.reconcileReservation(ctx, tx, op, p)
		case p.OrderID != nil:
			result.Warnings, err = s.reconcileOrder(ctx, tx, op, p)
		}
		if err != nil {
			return err
		}
		msgs = append(msgs, pushed...)
		for _, w := range result.Warnings {
			msgs = append(msgs, events.New(s.now(), model.EventTypeReconciliationWarning, "payment", id, map[string]any{
				"entity": w.Entity,
				"id":     w.ID,
				"detail": w.Detail,
			}))
		}
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "payment", id.String())
	}
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "payment settled",
		slog.String("payment_id", id.String()),
		slog.String("outcome", string(outcome)),
	)
	for _, w := range result.Warnings {
		s.log.Warn(op, w.Error(),
			slog.String("payment_id", id.String()),
			slog.String("entity", w.Entity),
			slog.String("entity_id", w.ID),
		)
	}
	s.publish(ctx, msgs)
	return result, nil
}

// reconcileReservation confirms the paid reservation when it is still
// pending. Refused pushes become warnings; storage failures abort.
func (s *PaymentService) reconcileReservation(
	ctx context.Context,
	tx *repository.Store,
	op string,
	p *model.Payment,
) ([]events.Message, []*Error, error) {
	rid := p.ReservationID.String()
	r, err := tx.Reservations().GetByID(ctx, *p.ReservationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, []*Error{reconciliationWarning(op, "reservation", rid, "linked reservation no longer exists", nil)}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var warnings []*Error
	if r.TotalAmountCents != nil && *r.TotalAmountCents != p.AmountCents {
		warnings = append(warnings, reconciliationWarning(op, "reservation", rid, "payment amount differs from reservation total",
			amountFields(p.AmountCents, *r.TotalAmountCents)))
	}

	if r.Status != model.ReservationStatusPending {
		refused := transitionRefused(op, "reservation", rid, string(r.Status), string(model.ReservationStatusConfirmed),
			"reservation is not pending")
		w := reconciliationWarning(op, "reservation", rid,
			fmt.Sprintf("reservation is %s, expected pending", r.Status), refused.Fields)
		w.Err = refused
		return nil, append(warnings, w), nil
	}

	msgs, err := s.reservations.transition(ctx, tx, op, r, model.ReservationStatusConfirmed)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && errors.Is(e, ErrInvalidTransition) {
			w := reconciliationWarning(op, "reservation", rid, "reservation not confirmed: "+e.Detail, e.Fields)
			w.Err = e
			return nil, append(warnings, w), nil
		}
		return nil, nil, err
	}
	return msgs, warnings, nil
}

// reconcileOrder cross-checks the paid amount; the kitchen workflow is not
// pushed.
func (s *PaymentService) reconcileOrder(
	ctx context.Context,
	tx *repository.Store,
	op string,
	p *model.Payment,
) ([]*Error, error) {
	oid := p.OrderID.String()
	o, err := tx.Orders().GetByID(ctx, *p.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []*Error{reconciliationWarning(op, "order", oid, "linked order no longer exists", nil)}, nil
	}
	if err != nil {
		return nil, err
	}

	var warnings []*Error
	if o.TotalCents != p.AmountCents {
		warnings = append(warnings, reconciliationWarning(op, "order", oid, "payment amount differs from order total",
			amountFields(p.AmountCents, o.TotalCents)))
	}
	if o.Status == model.OrderStatusCancelled {
		warnings = append(warnings, reconciliationWarning(op, "order", oid, "order is cancelled", nil))
	}
	return warnings, nil
}

// Refund is allowed from completed only. The linked reservation or order
// keeps its status.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	const op = "payment.refund"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		payment *model.Payment
		msgs    []events.Message
	)
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		p, err := tx.Payments().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to := model.PaymentStatusRefunded
		if err := statemachine.Payment.Check(p.Status, to); err != nil {
			return invalidTransition(op, "payment", id.String(), err)
		}
		now := s.now()
		if err := tx.Payments().TransitionStatus(ctx, id, p.Status, to, map[string]any{"refunded_at": now}); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return transitionRefused(op, "payment", id.String(), string(p.Status), string(to), "status changed concurrently")
			}
			return err
		}
		p.Status = to
		p.RefundedAt = &now
		payment = p
		msgs = append(msgs, events.New(s.now(), model.EventTypePaymentRefunded, "payment", id, map[string]any{
			"amount_cents": p.AmountCents,
			"target":       targetOf(p),
		}))
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "payment", id.String())
	}
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "payment refunded", slog.String("payment_id", id.String()))
	s.publish(ctx, msgs)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	const op = "payment.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.store.Payments().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "payment", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentFilter) (calendar.Page[model.Payment], error) {
	const op = "payment.list"
	if err := ctx.Err(); err != nil {
		return calendar.Page[model.Payment]{}, err
	}
	if err := validateRequest(op, filter); err != nil {
		return calendar.Page[model.Payment]{}, err
	}

	limit, offset := calendar.Offset(filter.Page, filter.PageSize)
	payments, total, err := s.store.Payments().List(ctx, repository.PaymentFilter{
		CustomerID: filter.CustomerID,
		Status:     filter.Status,
	}, limit, offset)
	if err != nil {
		return calendar.Page[model.Payment]{}, storageError(op, err)
	}
	return calendar.NewPage(payments, total, filter.Page, filter.PageSize), nil
}

func targetOf(p *model.Payment) string {
	switch {
	case p.ReservationID != nil:
		return "reservation:" + p.ReservationID.String()
	case p.OrderID != nil:
		return "order:" + p.OrderID.String()
	}
	return ""
}

func amountFields(paid, expected int64) map[string]string {
	return map[string]string{
		"paid_cents":     strconv.FormatInt(paid, 10),
		"expected_cents": strconv.FormatInt(expected, 10),
	}
}
