package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeReservationCreated       EventType = "reservation.created"
	EventTypeReservationStatusChanged EventType = "reservation.status_changed"
	EventTypeOrderCreated             EventType = "order.created"
	EventTypeOrderStatusChanged       EventType = "order.status_changed"
	EventTypeOrderDeleted             EventType = "order.deleted"
	EventTypePaymentCreated           EventType = "payment.created"
	EventTypePaymentSettled           EventType = "payment.settled"
	EventTypePaymentRefunded          EventType = "payment.refunded"
	EventTypeReconciliationWarning    EventType = "payment.reconciliation_warning"
	EventTypeTableStatusChanged       EventType = "table.status_changed"
)

// events: журнал изменений состояния.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	EntityType string    `gorm:"type:varchar(32);not null;index:idx_events_entity,priority:1"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_events_entity,priority:2"`

	Details datatypes.JSON

	CreatedAt time.Time `gorm:"not null;index"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
