package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Appointment event actions carried on the wire.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// AppointmentEvent announces a committed appointment change. It carries only
// identifiers; the worker reads the current appointment from the store.
// ExternalID is set when the appointment was already mirrored, so deletions
// can be applied after the row is gone.
type AppointmentEvent struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	ExternalID string    `json:"external_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewAppointmentEvent(id int64, externalID, action string) *AppointmentEvent {
	return &AppointmentEvent{
		ID:         id,
		Action:     action,
		ExternalID: externalID,
		Timestamp:  time.Now(),
	}
}

func (m *AppointmentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AppointmentEventFromJSON decodes and checks an event body.
func AppointmentEventFromJSON(data []byte) (*AppointmentEvent, error) {
	var msg AppointmentEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid appointment id %d", msg.ID)
	}
	return &msg, nil
}
