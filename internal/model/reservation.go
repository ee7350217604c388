package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/restaurant-platform/internal/calendar"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusSeated    ReservationStatus = "seated"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// ActiveReservationStatuses are the statuses that hold a window on a table.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusSeated,
}

// Active reports whether the reservation still takes part in overlap checks.
func (s ReservationStatus) Active() bool {
	return s != ReservationStatusCancelled && s != ReservationStatusCompleted
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusSeated,
		ReservationStatusCompleted, ReservationStatusCancelled:
		return true
	}
	return false
}

const DefaultReservationDurationMin = 60

// reservations
type Reservation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	TableID    uuid.UUID `gorm:"type:uuid;not null;index:idx_reservations_table_window,priority:1"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Дата брони в часовом поясе ресторана.
	ReservationDate datatypes.Date `gorm:"not null;index"`

	// Окно [StartsAt, EndsAt) в UTC.
	StartsAt    time.Time `gorm:"not null;index:idx_reservations_table_window,priority:2"`
	EndsAt      time.Time `gorm:"not null"`
	DurationMin int       `gorm:"not null;default:60"`

	PartySize       int               `gorm:"not null"`
	SpecialRequests string            `gorm:"type:text"`
	Status          ReservationStatus `gorm:"type:varchar(32);not null;index"`

	TotalAmountCents *int64 `gorm:"type:bigint"`

	CreatedAt   time.Time  `gorm:"not null;<-:create"`
	UpdatedAt   time.Time  `gorm:"not null"`
	CancelledAt *time.Time

	Table *Table `gorm:"foreignKey:TableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Window returns the occupied interval of the reservation.
func (r *Reservation) Window() calendar.TimeRange {
	return calendar.TimeRange{Start: r.StartsAt, End: r.EndsAt}
}
