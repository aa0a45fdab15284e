package bus

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Divarin/Community-sub002/internal/observability"
)

// Subscriber is one registration for one message kind. SessionID ties the
// subscriber to its owning session for self-delivery suppression. Filter,
// when set, is evaluated before Receive; returning false drops the message
// for this subscriber only.
type Subscriber struct {
	SessionID uuid.UUID
	Kind      Kind
	Filter    func(Message) bool
	Receive   func(Message)
}

// Bus is the in-process publish/subscribe fan-out. Delivery is synchronous
// on the publisher's goroutine and exhaustive over the subscribers
// registered for the message's kind at publish time.
type Bus struct {
	mu   sync.RWMutex
	subs [kindCount][]*Subscriber
	log  *zap.Logger
}

// New builds an empty bus.
func New(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers sub for its kind.
func (b *Bus) Subscribe(sub *Subscriber) {
	if sub == nil || sub.Kind < 0 || sub.Kind >= kindCount {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.Kind] = append(b.subs[sub.Kind], sub)
}

// Unsubscribe removes sub. Removing a subscriber that was never added is a
// no-op, so disposal can always unsubscribe unconditionally.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil || sub.Kind < 0 || sub.Kind >= kindCount {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.Kind]
	for i, s := range list {
		if s == sub {
			b.subs[sub.Kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers m to every subscriber of its kind on the calling
// goroutine. A panicking callback is isolated: it is logged, counted, and
// the remaining subscribers still receive the message. The publisher never
// sees a subscriber error.
func (b *Bus) Publish(m Message) {
	kind := m.Kind()
	if kind < 0 || kind >= kindCount {
		return
	}

	b.mu.RLock()
	snapshot := make([]*Subscriber, len(b.subs[kind]))
	copy(snapshot, b.subs[kind])
	b.mu.RUnlock()

	observability.IncBusPublished(kind.String())

	for _, sub := range snapshot {
		if sub.SessionID == m.Origin() {
			continue
		}
		if sub.Filter != nil && !sub.Filter(m) {
			continue
		}
		b.deliver(sub, m)
	}
}

func (b *Bus) deliver(sub *Subscriber, m Message) {
	defer func() {
		if r := recover(); r != nil {
			observability.IncSubscriberPanic()
			b.log.Error("bus subscriber panicked",
				zap.String("kind", m.Kind().String()),
				zap.String("session_id", sub.SessionID.String()),
				zap.Any("panic", r))
		}
	}()
	sub.Receive(m)
}
