package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/calendar"
	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
	"github.com/Leganyst/restaurant-platform/internal/statemachine"
)

// ReservationService books tables without double booking and drives
// reservations through their lifecycle. Every check-then-write runs under
// the table lock and inside one transaction, lock first.
type ReservationService struct {
	*deps
	defaultDurationMin int
}

type BookRequest struct {
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	// Локальные дата и время ресторана.
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,datetime=15:04"`
	// 0: длительность по умолчанию.
	DurationMin      int        `json:"duration_min" validate:"gte=0,lte=1440"`
	PartySize        int        `json:"party_size" validate:"gte=1"`
	TableID          *uuid.UUID `json:"table_id"`
	SpecialRequests  string     `json:"special_requests" validate:"max=1000"`
	TotalAmountCents *int64     `json:"total_amount_cents" validate:"omitempty,gte=0"`
}

type ReservationFilter struct {
	CustomerID *uuid.UUID              `json:"customer_id"`
	TableID    *uuid.UUID              `json:"table_id"`
	Status     model.ReservationStatus `json:"status" validate:"omitempty,oneof=pending confirmed seated completed cancelled"`
	Date       string                  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Page       int                     `json:"page" validate:"gte=0"`
	PageSize   int                     `json:"page_size" validate:"gte=0"`
}

// AvailabilityQuery asks which tables could take a window.
type AvailabilityQuery struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	DurationMin int    `json:"duration_min" validate:"gte=0,lte=1440"`
	PartySize   int    `json:"party_size" validate:"gte=1"`
}

// Book reserves a window. With TableID set only that table is tried,
// otherwise the smallest free table that fits wins, ties by number.
// The reservation is created pending and the table status is left alone.
func (s *ReservationService) Book(ctx context.Context, req BookRequest) (*model.Reservation, error) {
	const op = "reservation.book"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	window, durationMin, err := s.window(op, req.Date, req.Time, req.DurationMin)
	if err != nil {
		return nil, err
	}
	if window.Start.Before(s.now()) {
		e := invalidRequest(op, "reservation window starts in the past", nil)
		e.Fields = map[string]string{"window": window.String()}
		return nil, e
	}

	draft := &model.Reservation{
		CustomerID:       req.CustomerID,
		ReservationDate:  datatypes.Date(calendar.DateOf(window.Start, s.loc)),
		StartsAt:         window.Start,
		EndsAt:           window.End,
		DurationMin:      durationMin,
		PartySize:        req.PartySize,
		SpecialRequests:  req.SpecialRequests,
		Status:           model.ReservationStatusPending,
		TotalAmountCents: req.TotalAmountCents,
	}

	if req.TableID != nil {
		return s.bookTable(ctx, op, *req.TableID, draft, false)
	}

	candidates, err := s.store.Tables().ListCandidates(ctx, req.PartySize)
	if err != nil {
		return nil, storageError(op, err)
	}
	for _, t := range candidates {
		res, err := s.bookTable(ctx, op, t.ID, draft, true)
		if err == nil {
			return res, nil
		}
		// Стол заняли или удалили, пока мы ждали блокировку: пробуем следующий.
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			continue
		}
		return nil, err
	}

	return nil, conflict(op, "reservation", "", "no table available", map[string]string{
		"party_size": strconv.Itoa(req.PartySize),
		"window":     window.String(),
		"candidates": strconv.Itoa(len(candidates)),
	})
}

// bookTable runs the check-and-write for one table. auto marks a table picked
// by the scheduler: it must still be available when the lock is taken.
func (s *ReservationService) bookTable(
	ctx context.Context,
	op string,
	tableID uuid.UUID,
	draft *model.Reservation,
	auto bool,
) (*model.Reservation, error) {
	unlock, err := s.locker.Lock(ctx, lock.TableKey(tableID.String()))
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := *draft
	res.TableID = tableID
	window := calendar.TimeRange{Start: res.StartsAt, End: res.EndsAt}

	var msgs []events.Message
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		table, err := tx.Tables().GetByID(ctx, tableID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(op, "table", tableID.String())
		}
		if err != nil {
			return err
		}

		tableFields := map[string]string{"number": strconv.Itoa(table.Number)}
		switch {
		case table.Status == model.TableStatusMaintenance:
			return conflict(op, "table", tableID.String(), "table is under maintenance", tableFields)
		case auto && table.Status != model.TableStatusAvailable:
			return conflict(op, "table", tableID.String(), "table is "+string(table.Status), tableFields)
		}

		if res.PartySize > table.Capacity {
			detail := fmt.Sprintf("party of %d exceeds capacity %d", res.PartySize, table.Capacity)
			if auto {
				return conflict(op, "table", tableID.String(), detail, tableFields)
			}
			e := invalidRequest(op, detail, nil)
			e.Entity, e.ID, e.Fields = "table", tableID.String(), tableFields
			return e
		}

		clash, err := tx.Reservations().ListOverlapping(ctx, tableID, window.Start, window.End)
		if err != nil {
			return err
		}
		existing := make([]calendar.TimeRange, len(clash))
		for i := range clash {
			existing[i] = clash[i].Window()
		}
		// ListOverlapping отдает только пересекающиеся строки, так что hits[i] это clash[i].
		if overlaps, hits := calendar.HasOverlap(window, existing); overlaps {
			return conflict(op, "table", tableID.String(), "window overlaps an active reservation", map[string]string{
				"number":                  strconv.Itoa(table.Number),
				"requested_window":        window.String(),
				"conflicting_reservation": clash[0].ID.String(),
				"conflicting_window":      hits[0].String(),
				"conflicts":               strconv.Itoa(len(hits)),
			})
		}

		if err := tx.Reservations().Create(ctx, &res); err != nil {
			return err
		}
		msgs = append(msgs, events.New(s.now(), model.EventTypeReservationCreated, "reservation", res.ID, map[string]any{
			"table_id":     tableID.String(),
			"table_number": table.Number,
			"customer_id":  res.CustomerID.String(),
			"starts_at":    res.StartsAt,
			"ends_at":      res.EndsAt,
			"party_size":   res.PartySize,
		}))
		return s.record(ctx, tx, msgs...)
	})
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "reservation booked",
		slog.String("reservation_id", res.ID.String()),
		slog.String("table_id", tableID.String()),
		slog.String("window", window.String()),
		slog.Int("party_size", res.PartySize),
	)
	s.publish(ctx, msgs)
	return &res, nil
}

// UpdateStatus moves a reservation along its lifecycle and keeps the table
// status in step with it.
func (s *ReservationService) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	to model.ReservationStatus,
) (*model.Reservation, error) {
	return s.updateStatus(ctx, "reservation.update_status", id, to)
}

func (s *ReservationService) Cancel(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.updateStatus(ctx, "reservation.cancel", id, model.ReservationStatusCancelled)
}

func (s *ReservationService) updateStatus(
	ctx context.Context,
	op string,
	id uuid.UUID,
	to model.ReservationStatus,
) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, invalidRequest(op, "unknown reservation status "+strconv.Quote(string(to)), nil)
	}

	current, err := s.store.Reservations().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "reservation", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}

	unlock, err := s.locker.Lock(ctx, lock.TableKey(current.TableID.String()))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		res  *model.Reservation
		from model.ReservationStatus
		msgs []events.Message
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		r, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = r.Status
		m, err := s.transition(ctx, tx, op, r, to)
		if err != nil {
			return err
		}
		res, msgs = r, m
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "reservation", id.String())
	}
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "reservation status changed",
		slog.String("reservation_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	s.publish(ctx, msgs)
	return res, nil
}

// transition applies from -> to on r inside tx. The caller holds the lock of
// r's table. Nothing is written unless every guard passes.
func (s *ReservationService) transition(
	ctx context.Context,
	tx *repository.Store,
	op string,
	r *model.Reservation,
	to model.ReservationStatus,
) ([]events.Message, error) {
	from := r.Status
	id := r.ID.String()
	if err := statemachine.Reservation.Check(from, to); err != nil {
		return nil, invalidTransition(op, "reservation", id, err)
	}

	now := s.now()
	switch to {
	case model.ReservationStatusConfirmed:
		if !now.Before(r.StartsAt) {
			return nil, transitionRefused(op, "reservation", id, string(from), string(to),
				"reservation window has already started")
		}
	case model.ReservationStatusSeated:
		if now.Before(r.StartsAt) {
			return nil, transitionRefused(op, "reservation", id, string(from), string(to),
				"reservation window has not started yet")
		}
	}

	var cancelledAt *time.Time
	if to == model.ReservationStatusCancelled {
		cancelledAt = &now
	}
	if err := tx.Reservations().TransitionStatus(ctx, r.ID, from, to, cancelledAt); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, transitionRefused(op, "reservation", id, string(from), string(to),
				"status changed concurrently")
		}
		return nil, err
	}
	r.Status = to
	r.CancelledAt = cancelledAt

	msgs := []events.Message{
		events.New(s.now(), model.EventTypeReservationStatusChanged, "reservation", r.ID, map[string]any{
			"table_id": r.TableID.String(),
			"from":     string(from),
			"to":       string(to),
		}),
	}
	tableMsg, err := s.syncTable(ctx, tx, r, from, now)
	if err != nil {
		return nil, err
	}
	if tableMsg != nil {
		msgs = append(msgs, *tableMsg)
	}
	return msgs, nil
}

// syncTable derives the table status after r moved out of from.
// Maintenance is a manual state and is never overridden.
func (s *ReservationService) syncTable(
	ctx context.Context,
	tx *repository.Store,
	r *model.Reservation,
	from model.ReservationStatus,
	now time.Time,
) (*events.Message, error) {
	table, err := tx.Tables().GetByID(ctx, r.TableID)
	if err != nil {
		return nil, err
	}
	if table.Status == model.TableStatusMaintenance {
		return nil, nil
	}

	target := table.Status
	switch {
	case r.Status == model.ReservationStatusConfirmed:
		// Бронь на другой день держит только слот, не стол.
		if table.Status == model.TableStatusAvailable && s.current(r, now) {
			target = model.TableStatusReserved
		}
	case r.Status == model.ReservationStatusSeated:
		target = model.TableStatusOccupied
	case !r.Status.Active():
		held := from == model.ReservationStatusSeated ||
			(from == model.ReservationStatusConfirmed && table.Status == model.TableStatusReserved)
		if !held {
			return nil, nil
		}
		target, err = s.derivedStatus(ctx, tx, r.TableID, now)
		if err != nil {
			return nil, err
		}
	}

	if target == table.Status {
		return nil, nil
	}
	if err := tx.Tables().UpdateStatus(ctx, table.ID, target); err != nil {
		return nil, err
	}
	msg := tableStatusEvent(now, table, target, "reservation "+r.ID.String()+" "+string(r.Status))
	return &msg, nil
}

// derivedStatus is what a released table falls back to given the
// reservations still active on it.
func (s *ReservationService) derivedStatus(
	ctx context.Context,
	tx *repository.Store,
	tableID uuid.UUID,
	now time.Time,
) (model.TableStatus, error) {
	active, err := tx.Reservations().ListActiveByTable(ctx, tableID)
	if err != nil {
		return "", err
	}
	status := model.TableStatusAvailable
	for i := range active {
		switch {
		case active[i].Status == model.ReservationStatusSeated:
			return model.TableStatusOccupied, nil
		case active[i].Status == model.ReservationStatusConfirmed && s.current(&active[i], now):
			status = model.TableStatusReserved
		}
	}
	return status, nil
}

// current reports whether r's window is on today's date and not over yet.
func (s *ReservationService) current(r *model.Reservation, now time.Time) bool {
	return calendar.SameDay(r.StartsAt, now, s.loc) && now.Before(r.EndsAt)
}

func (s *ReservationService) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	const op = "reservation.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.store.Reservations().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "reservation", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return r, nil
}

// ListReservations returns one page ordered by window start.
func (s *ReservationService) ListReservations(
	ctx context.Context,
	filter ReservationFilter,
) (calendar.Page[model.Reservation], error) {
	const op = "reservation.list"
	if err := ctx.Err(); err != nil {
		return calendar.Page[model.Reservation]{}, err
	}
	if err := validateRequest(op, filter); err != nil {
		return calendar.Page[model.Reservation]{}, err
	}

	repoFilter := repository.ReservationFilter{
		CustomerID: filter.CustomerID,
		TableID:    filter.TableID,
		Status:     filter.Status,
	}
	if filter.Date != "" {
		d, err := time.Parse(calendar.DateLayout, filter.Date)
		if err != nil {
			return calendar.Page[model.Reservation]{}, invalidRequest(op, "date must match layout "+calendar.DateLayout, err)
		}
		repoFilter.Date = &d
	}

	limit, offset := calendar.Offset(filter.Page, filter.PageSize)
	items, total, err := s.store.Reservations().List(ctx, repoFilter, limit, offset)
	if err != nil {
		return calendar.Page[model.Reservation]{}, storageError(op, err)
	}
	return calendar.NewPage(items, total, filter.Page, filter.PageSize), nil
}

// FindOverlapping lists the active reservations of a table that intersect
// [startsAt, startsAt+duration).
func (s *ReservationService) FindOverlapping(
	ctx context.Context,
	tableID uuid.UUID,
	startsAt time.Time,
	duration time.Duration,
) ([]model.Reservation, error) {
	const op = "reservation.find_overlapping"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	window, err := calendar.WindowOf(startsAt.UTC(), duration)
	if err != nil {
		return nil, invalidRequest(op, err.Error(), err)
	}

	if _, err := s.store.Tables().GetByID(ctx, tableID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(op, "table", tableID.String())
		}
		return nil, storageError(op, err)
	}

	found, err := s.store.Reservations().ListOverlapping(ctx, tableID, window.Start, window.End)
	if err != nil {
		return nil, storageError(op, err)
	}
	return found, nil
}

// AvailableTables lists, in booking preference order, the tables Book would
// accept for the window right now.
func (s *ReservationService) AvailableTables(ctx context.Context, q AvailabilityQuery) ([]model.Table, error) {
	const op = "reservation.available_tables"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, q); err != nil {
		return nil, err
	}
	window, _, err := s.window(op, q.Date, q.Time, q.DurationMin)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.Tables().ListCandidates(ctx, q.PartySize)
	if err != nil {
		return nil, storageError(op, err)
	}

	free := make([]model.Table, 0, len(candidates))
	for _, t := range candidates {
		clash, err := s.store.Reservations().ListOverlapping(ctx, t.ID, window.Start, window.End)
		if err != nil {
			return nil, storageError(op, err)
		}
		if len(clash) == 0 {
			free = append(free, t)
		}
	}
	return free, nil
}

// window resolves the local date and time into a UTC window, applying the
// default duration.
func (s *ReservationService) window(op, date, clock string, durationMin int) (calendar.TimeRange, int, error) {
	if durationMin == 0 {
		durationMin = s.defaultDurationMin
	}
	window, err := calendar.ParseWindow(date, clock, durationMin, s.loc)
	if err != nil {
		return calendar.TimeRange{}, 0, invalidRequest(op, err.Error(), err)
	}
	return window, durationMin, nil
}
