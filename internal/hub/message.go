package hub

import (
	"encoding/json"
	"fmt"

	"github.com/ldomjan/sharedcal/internal/storage"
)

// Message kinds carried over the real-time channel. Clients announce
// with the first three; the hub delivers the last two.
const (
	TypeEventAdded      = "event-added"
	TypeEventUpdated    = "event-updated"
	TypeEventDeleted    = "event-deleted"
	TypeCalendarUpdated = "calendar-updated"
	TypeEventRemoved    = "event-removed"
)

type Envelope struct {
	Type    string         `json:"type"`
	Event   *storage.Event `json:"event,omitempty"`
	EventID string         `json:"eventId,omitempty"`
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("malformed envelope: missing type")
	}
	return env, nil
}

func (e Envelope) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		// Envelope holds only marshalable fields.
		panic(err)
	}
	return data
}

func CalendarUpdated(e storage.Event) Envelope {
	return Envelope{Type: TypeCalendarUpdated, Event: &e}
}

func EventRemoved(id string) Envelope {
	return Envelope{Type: TypeEventRemoved, EventID: id}
}
