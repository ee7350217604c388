package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
)

// TableService is the table registry.
type TableService struct {
	*deps
}

type TableFilter struct {
	Status      model.TableStatus `json:"status" validate:"omitempty,oneof=available occupied reserved maintenance"`
	MinCapacity int               `json:"min_capacity" validate:"gte=0"`
	MaxCapacity int               `json:"max_capacity" validate:"gte=0"`
}

type CreateTableRequest struct {
	Number      int               `json:"number" validate:"gt=0"`
	Capacity    int               `json:"capacity" validate:"gt=0"`
	Status      model.TableStatus `json:"status" validate:"omitempty,oneof=available occupied reserved maintenance"`
	Location    string            `json:"location" validate:"max=255"`
	Description string            `json:"description"`
}

// ListTables returns tables ordered by number.
func (s *TableService) ListTables(ctx context.Context, filter TableFilter) ([]model.Table, error) {
	const op = "table.list"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, filter); err != nil {
		return nil, err
	}
	tables, err := s.store.Tables().List(ctx, repository.TableFilter{
		Status:      filter.Status,
		MinCapacity: filter.MinCapacity,
		MaxCapacity: filter.MaxCapacity,
	})
	if err != nil {
		return nil, storageError(op, err)
	}
	return tables, nil
}

func (s *TableService) GetTable(ctx context.Context, id uuid.UUID) (*model.Table, error) {
	const op = "table.get"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.store.Tables().GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "table", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return t, nil
}

func (s *TableService) CreateTable(ctx context.Context, req CreateTableRequest) (*model.Table, error) {
	const op = "table.create"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	table := &model.Table{
		Number:      req.Number,
		Capacity:    req.Capacity,
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
	}
	if table.Status == "" {
		table.Status = model.TableStatusAvailable
	}

	numberTaken := func() *Error {
		return conflict(op, "table", "", "table number already exists",
			map[string]string{"number": strconv.Itoa(req.Number)})
	}

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		_, err := tx.Tables().GetByNumber(ctx, req.Number)
		if err == nil {
			return numberTaken()
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Tables().Create(ctx, table)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Проиграли гонку за номер между проверкой и вставкой.
		return nil, numberTaken()
	}
	if err != nil {
		return nil, txError(op, err)
	}

	s.log.Info(op, "table created",
		slog.String("table_id", table.ID.String()),
		slog.Int("number", table.Number),
		slog.Int("capacity", table.Capacity),
	)
	return table, nil
}

// SetStatus is an idempotent status write; it does not consult reservations.
func (s *TableService) SetStatus(ctx context.Context, id uuid.UUID, status model.TableStatus) (*model.Table, error) {
	const op = "table.set_status"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidRequest(op, "unknown table status "+strconv.Quote(string(status)), nil)
	}

	unlock, err := s.locker.Lock(ctx, lock.TableKey(id.String()))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		table *model.Table
		msgs  []events.Message
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		t, err := tx.Tables().GetByID(ctx, id)
		if err != nil {
			return err
		}
		table = t
		if t.Status == status {
			return nil
		}
		if err := tx.Tables().UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		msgs = append(msgs, tableStatusEvent(s.now(), t, status, "manual"))
		table.Status = status
		return s.record(ctx, tx, msgs...)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(op, "table", id.String())
	}
	if err != nil {
		return nil, storageError(op, err)
	}

	s.publish(ctx, msgs)
	return table, nil
}

// DeleteTable refuses to remove a table that still has active reservations.
func (s *TableService) DeleteTable(ctx context.Context, id uuid.UUID) error {
	const op = "table.delete"
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, lock.TableKey(id.String()))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Tables().GetByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Reservations().CountActiveByTable(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict(op, "table", id.String(), "table has active reservations",
				map[string]string{"active_reservations": strconv.FormatInt(n, 10)})
		}
		return tx.Tables().Delete(ctx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, "table", id.String())
	}
	if err != nil {
		return txError(op, err)
	}

	s.log.Info(op, "table deleted", slog.String("table_id", id.String()))
	return nil
}

func tableStatusEvent(at time.Time, t *model.Table, to model.TableStatus, reason string) events.Message {
	return events.New(at, model.EventTypeTableStatusChanged, "table", t.ID, map[string]any{
		"number": t.Number,
		"from":   string(t.Status),
		"to":     string(to),
		"reason": reason,
	})
}
