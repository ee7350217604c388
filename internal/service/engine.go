package service

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/calendar"
	"github.com/Leganyst/restaurant-platform/internal/events"
	"github.com/Leganyst/restaurant-platform/internal/lock"
	"github.com/Leganyst/restaurant-platform/internal/logger"
	"github.com/Leganyst/restaurant-platform/internal/model"
	"github.com/Leganyst/restaurant-platform/internal/repository"
)

type Options struct {
	Clock     calendar.Clock
	Locker    lock.Locker
	Publisher events.Publisher
	Logger    *logger.Logger
	// Часовой пояс ресторана; по нему определяется "сегодня".
	Location           *time.Location
	DefaultDurationMin int
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = calendar.SystemClock{}
	}
	if o.Locker == nil {
		o.Locker = lock.NewLocalLocker()
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultDurationMin <= 0 {
		o.DefaultDurationMin = model.DefaultReservationDurationMin
	}
	return o
}

// deps is shared by every component of the engine.
type deps struct {
	store     *repository.Store
	locker    lock.Locker
	publisher events.Publisher
	clock     calendar.Clock
	log       *logger.Logger
	loc       *time.Location
}

// Engine wires the table registry, scheduler, order workflow, menu and
// payment reconciler over one database.
type Engine struct {
	Tables       *TableService
	Reservations *ReservationService
	Menu         *MenuService
	Orders       *OrderService
	Payments     *PaymentService
}

func NewEngine(db *gorm.DB, opts Options) *Engine {
	opts = opts.withDefaults()
	d := &deps{
		store:     repository.NewStore(db),
		locker:    opts.Locker,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		log:       opts.Logger,
		loc:       opts.Location,
	}

	reservations := &ReservationService{deps: d, defaultDurationMin: opts.DefaultDurationMin}
	orders := &OrderService{deps: d}
	return &Engine{
		Tables:       &TableService{deps: d},
		Reservations: reservations,
		Menu:         &MenuService{deps: d},
		Orders:       orders,
		Payments:     &PaymentService{deps: d, reservations: reservations},
	}
}

// record stores audit rows for msgs inside the caller's transaction.
func (d *deps) record(ctx context.Context, tx *repository.Store, msgs ...events.Message) error {
	for _, m := range msgs {
		ev, err := m.Record()
		if err != nil {
			return err
		}
		if err := tx.Events().Create(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// publish forwards committed events to the broker. The state change has
// already committed, so failures are logged and not returned.
func (d *deps) publish(ctx context.Context, msgs []events.Message) {
	for _, m := range msgs {
		if err := d.publisher.Publish(ctx, m); err != nil {
			d.log.Error("event_publish", "publish failed", err,
				slog.String("event_type", string(m.Type)),
				slog.String("entity_id", m.EntityID.String()),
			)
		}
	}
}

func (d *deps) now() time.Time {
	return d.clock.Now().UTC()
}
