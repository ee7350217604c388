// Package events defines domain event payloads and their publication to the
// message broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/restaurant-platform/internal/model"
)

// Message is published after the state change it describes has committed.
// The same payload is stored in the events audit table.
type Message struct {
	ID         uuid.UUID       `json:"id"`
	Type       model.EventType `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       map[string]any  `json:"data,omitempty"`
}

// New builds a message stamped with at, the caller's clock reading.
func New(at time.Time, eventType model.EventType, entityType string, entityID uuid.UUID, data map[string]any) Message {
	return Message{
		ID:         uuid.New(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// RoutingKey is the broker routing key, e.g. "reservation.created".
func (m Message) RoutingKey() string {
	return string(m.Type)
}

// Record converts the message into its audit row.
func (m Message) Record() (*model.Event, error) {
	details, err := json.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	return &model.Event{
		ID:         m.ID,
		EventType:  m.Type,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Details:    datatypes.JSON(details),
		CreatedAt:  m.OccurredAt,
	}, nil
}
