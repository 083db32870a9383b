package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event types
const (
	EventSessionStarted    = "session.started"
	EventSessionEnded      = "session.ended"
	EventCeilingExceeded   = "cart.ceiling_exceeded"
	EventCheckoutStarted   = "checkout.started"
	EventCheckoutCompleted = "checkout.completed"
)

// Event represents a storefront event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// UserID returns the identity namespace that produced the event
	UserID() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, userID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		User:      userID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) UserID() string        { return e.User }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes storefront events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers. A nil dispatcher
// drops the event.
func (d *EventDispatcher) Publish(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers[event.EventType()] {
		h(event)
	}
	for _, h := range d.allHandlers {
		h(event)
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is published when a token is adopted
type SessionStartedEvent struct {
	BaseEvent
	Role Role `json:"role,omitempty"`
}

// NewSessionStartedEvent creates a new session started event
func NewSessionStartedEvent(userID string, role Role) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent: NewBaseEvent(EventSessionStarted, userID),
		Role:      role,
	}
}

// SessionEndedEvent is published on logout or detected expiry
type SessionEndedEvent struct {
	BaseEvent
	Expired bool `json:"expired"`
}

// NewSessionEndedEvent creates a new session ended event
func NewSessionEndedEvent(userID string, expired bool) SessionEndedEvent {
	return SessionEndedEvent{
		BaseEvent: NewBaseEvent(EventSessionEnded, userID),
		Expired:   expired,
	}
}

// -----------------------------------------------------------------------------
// Cart and Checkout Events
// -----------------------------------------------------------------------------

// CeilingExceededEvent is published when a cart mutation is rejected by the
// per-product quantity ceiling
type CeilingExceededEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
}

// NewCeilingExceededEvent creates a new ceiling exceeded event
func NewCeilingExceededEvent(userID, productID string, requested int) CeilingExceededEvent {
	return CeilingExceededEvent{
		BaseEvent: NewBaseEvent(EventCeilingExceeded, userID),
		ProductID: productID,
		Requested: requested,
	}
}

// CheckoutStartedEvent is published when a payment preference is created
type CheckoutStartedEvent struct {
	BaseEvent
	PreferenceID string  `json:"preference_id"`
	SaleID       string  `json:"sale_id"`
	Total        float64 `json:"total"`
}

// NewCheckoutStartedEvent creates a new checkout started event
func NewCheckoutStartedEvent(userID string, pref Preference, total float64) CheckoutStartedEvent {
	return CheckoutStartedEvent{
		BaseEvent:    NewBaseEvent(EventCheckoutStarted, userID),
		PreferenceID: pref.ID,
		SaleID:       pref.SaleID,
		Total:        total,
	}
}

// CheckoutCompletedEvent is published after the stock decrement succeeds
type CheckoutCompletedEvent struct {
	BaseEvent
	SaleID string        `json:"sale_id"`
	Items  []StockUpdate `json:"items"`
	Total  float64       `json:"total"`
}

// NewCheckoutCompletedEvent creates a new checkout completed event
func NewCheckoutCompletedEvent(userID, saleID string, items []LineItem) CheckoutCompletedEvent {
	updates := make([]StockUpdate, 0, len(items))
	for _, item := range items {
		updates = append(updates, StockUpdate{ID: item.ProductID, Quantity: item.Quantity})
	}
	return CheckoutCompletedEvent{
		BaseEvent: NewBaseEvent(EventCheckoutCompleted, userID),
		SaleID:    saleID,
		Items:     updates,
		Total:     Total(items),
	}
}
