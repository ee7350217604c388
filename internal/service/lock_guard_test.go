package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/model"
)

var errUnlockedWrite = errors.New("reservation write without the table lock")

// trackingLocker remembers which keys are held right now.
type trackingLocker struct {
	inner lock.Locker
	mu    sync.Mutex
	held  map[string]int
}

func newTrackingLocker() *trackingLocker {
	return &trackingLocker{inner: lock.NewLocalLocker(), held: make(map[string]int)}
}

func (l *trackingLocker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	unlock, err := l.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.held[key]++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held[key]--
			l.mu.Unlock()
			unlock()
		})
	}, nil
}

func (l *trackingLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key] > 0
}

func (l *trackingLocker) anyHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.held {
		if n > 0 {
			return true
		}
	}
	return false
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (lock.Unlock, error) {
	return func() {}, nil
}

// guardTableWrites fails every reservation insert whose table key is not
// held, and every reservation or table update made with no table lock held.
func guardTableWrites(t *testing.T, gdb *gorm.DB, tracker *trackingLocker) {
	t.Helper()
	err := gdb.Callback().Create().Before("gorm:create").Register("test:table_lock_on_create", func(tx *gorm.DB) {
		r, ok := tx.Statement.Dest.(*model.Reservation)
		if !ok {
			return
		}
		if !tracker.isHeld(lock.TableKey(r.TableID.String())) {
			_ = tx.AddError(errUnlockedWrite)
		}
	})
	if err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	err = gdb.Callback().Update().Before("gorm:update").Register("test:table_lock_on_update", func(tx *gorm.DB) {
		switch tx.Statement.Table {
		case "reservations", "restaurant_tables":
			if !tracker.anyHeld() {
				_ = tx.AddError(errUnlockedWrite)
			}
		}
	})
	if err != nil {
		t.Fatalf("register update callback: %v", err)
	}
}

func TestBook_WritesOnlyUnderTableLock(t *testing.T) {
	cases := []struct {
		name         string
		engineLocker func(tr *trackingLocker) lock.Locker
		wantUnlocked bool
	}{
		{name: "table lock", engineLocker: func(tr *trackingLocker) lock.Locker { return tr }},
		// Без блокировки проверка обязана сработать, иначе тест ничего не ловит.
		{name: "no lock", engineLocker: func(*trackingLocker) lock.Locker { return noopLocker{} }, wantUnlocked: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			tracker := newTrackingLocker()
			guardTableWrites(t, f.gdb, tracker)
			f.engine = NewEngine(f.gdb, Options{
				Clock:     f.clock,
				Publisher: f.sink,
				Location:  time.UTC,
				Locker:    c.engineLocker(tracker),
			})
			table := f.table(t, 1, 4)

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				booked    []*model.Reservation
				conflicts int
				unlocked  int
				others    []error
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := f.engine.Reservations.Book(context.Background(), bookAt(&table.ID, "19:00", 60, 2))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						booked = append(booked, res)
					case errors.Is(err, errUnlockedWrite):
						unlocked++
					case errors.Is(err, ErrConflict):
						conflicts++
					default:
						others = append(others, err)
					}
				}()
			}
			wg.Wait()

			if len(others) > 0 {
				t.Fatalf("unexpected errors: %v", others)
			}
			if c.wantUnlocked {
				if unlocked == 0 {
					t.Fatalf("expected writes without the lock to be caught")
				}
				if n := f.countReservations(t); n != 0 {
					t.Fatalf("expected no stored reservations, got %d", n)
				}
				return
			}

			if unlocked != 0 {
				t.Fatalf("%d reservation writes ran without the table lock", unlocked)
			}
			if len(booked) != 1 || conflicts != workers-1 {
				t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, len(booked), conflicts)
			}

			// Смена статуса брони и стола тоже идет под блокировкой.
			if _, err := f.engine.Reservations.UpdateStatus(context.Background(), booked[0].ID, model.ReservationStatusConfirmed); err != nil {
				t.Fatalf("confirm under lock: %v", err)
			}
			if got := f.tableStatus(t, table.ID); got != model.TableStatusReserved {
				t.Fatalf("expected table reserved, got %s", got)
			}
			if tracker.anyHeld() {
				t.Fatalf("expected every table lock to be released")
			}
		})
	}
}
