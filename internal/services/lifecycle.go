package services

import "sync"

// LifecycleEventKind classifies host lifecycle signals
type LifecycleEventKind string

const (
	// LifecycleSuspend means the editing surface may be torn down soon
	// (client backgrounded, connection going away)
	LifecycleSuspend LifecycleEventKind = "suspend"
	// LifecycleResume means the editing surface is active again
	LifecycleResume LifecycleEventKind = "resume"
	// LifecycleTerminate means the process is shutting down
	LifecycleTerminate LifecycleEventKind = "terminate"
)

// LifecycleEvent is one lifecycle signal. FacilityID and UserID scope the
// event to a single session; both empty means every session is affected.
type LifecycleEvent struct {
	Kind       LifecycleEventKind
	FacilityID string
	UserID     string
}

// Scoped reports whether the event targets one session
func (e LifecycleEvent) Scoped() bool {
	return e.FacilityID != "" || e.UserID != ""
}

// Matches reports whether the event applies to the given session key
func (e LifecycleEvent) Matches(facilityID, userID string) bool {
	if !e.Scoped() {
		return true
	}
	return e.FacilityID == facilityID && e.UserID == userID
}

// LifecycleBus decouples the auto-save engine from any particular host
// environment's notion of "going away". Publish dispatches synchronously so
// a suspend handler finishes its local flush before the publisher proceeds.
type LifecycleBus struct {
	mu          sync.RWMutex
	subscribers []func(LifecycleEvent)
}

// NewLifecycleBus creates an empty bus
func NewLifecycleBus() *LifecycleBus {
	return &LifecycleBus{}
}

// Subscribe registers a handler for all future events
func (b *LifecycleBus) Subscribe(fn func(LifecycleEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish delivers the event to every subscriber, in registration order,
// on the caller's goroutine
func (b *LifecycleBus) Publish(event LifecycleEvent) {
	b.mu.RLock()
	subscribers := make([]func(LifecycleEvent), len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
