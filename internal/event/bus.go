package event

import (
	"fmt"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kirbytools/buildwatch/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

type subscription struct {
	id      string
	pattern string
	handler Handler
}

// matches reports whether the subscription's pattern selects eventType.
// A pattern is an exact type, "*" for everything, or a category prefix
// ending in ".*" such as "build.*".
func (s subscription) matches(eventType string) bool {
	switch {
	case s.pattern == matchAll:
		return true
	case strings.HasSuffix(s.pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(s.pattern, "*"))
	default:
		return s.pattern == eventType
	}
}

// Bus is a synchronous pub-sub event bus. Handlers run on the publishing
// goroutine in the order they subscribed.
type Bus struct {
	logger *logging.Logger

	mu     sync.RWMutex
	subs   []subscription
	lastID uint64
}

// NewBus creates a new event bus. A nil logger discards handler panics
// after recovering them.
func NewBus(logger *logging.Logger) *Bus {
	return &Bus{logger: logging.OrNop(logger).WithComponent("event-bus")}
}

// Subscribe registers handler for events matching pattern and returns an ID
// for Unsubscribe.
func (b *Bus) Subscribe(pattern string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	id := "sub-" + strconv.FormatUint(b.lastID, 10)
	b.subs = append(b.subs, subscription{id: id, pattern: pattern, handler: handler})
	return id
}

// SubscribeAll registers handler for every event.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(matchAll, handler)
}

// Unsubscribe removes a subscription by ID. It reports whether one was found.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s subscription) bool { return s.id == id })
	if i < 0 {
		return false
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	return true
}

// Publish delivers event to every matching handler. The subscriber list is
// snapshotted first, so handlers may subscribe or unsubscribe freely. A
// panicking handler is logged and skipped.
func (b *Bus) Publish(event Event) {
	eventType := event.EventType()

	b.mu.RLock()
	var handlers []Handler
	for _, s := range b.subs {
		if s.matches(eventType) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", event.EventType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	handler(event)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
