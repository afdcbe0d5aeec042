package broadcast

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSpotAdded     EventType = "spot.added"
	EventSpotUpdated   EventType = "spot.updated"
	EventSpotDeleted   EventType = "spot.deleted"
	EventSpotAvailable EventType = "spot.availability"

	EventSessionReserved   EventType = "session.reserved"
	EventSessionOvertime   EventType = "session.overtime"
	EventSessionCheckedOut EventType = "session.checked_out"
	EventSessionForceEnded EventType = "session.force_ended"
)

// Event is the wire shape pushed to subscribers and mirrored to Kafka.
// Optional fields are pointers so omitempty drops what a given event
// type does not carry.
type Event struct {
	Type      EventType `json:"type"`
	SpotID    uuid.UUID `json:"spot_id,omitempty"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Available *int      `json:"available,omitempty"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher is the side of the hub producers see. Kept as an interface so
// domain services can be tested with a recording fake.
type Publisher interface {
	Publish(event Event)
}

func SpotAvailability(spotID uuid.UUID, available int) Event {
	return Event{
		Type:      EventSpotAvailable,
		SpotID:    spotID,
		Available: &available,
		At:        time.Now().UTC(),
	}
}

func SessionEvent(eventType EventType, sessionID, spotID uuid.UUID, state string) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		SpotID:    spotID,
		State:     state,
		At:        time.Now().UTC(),
	}
}

func SpotEvent(eventType EventType, spotID uuid.UUID) Event {
	return Event{
		Type:   eventType,
		SpotID: spotID,
		At:     time.Now().UTC(),
	}
}
