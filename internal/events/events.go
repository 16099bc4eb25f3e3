package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	AppointmentCreated = "appointment.created"
	AppointmentUpdated = "appointment.updated"
	AppointmentDeleted = "appointment.deleted"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// AppointmentPayload identifies the appointment an event is about.
type AppointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	StudioID      string `json:"studio_id"`
	ActorID       string `json:"actor_id,omitempty"`
}

// NewAppointmentEvent builds an event carrying an AppointmentPayload.
func NewAppointmentEvent(eventType string, p AppointmentPayload) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: data, CreatedAt: time.Now()}, nil
}

// DecodeAppointment reads the AppointmentPayload of an event.
func (e Event) DecodeAppointment() (AppointmentPayload, error) {
	var p AppointmentPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type in registration order and
// returns their joined errors. A failing handler does not stop the rest.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
