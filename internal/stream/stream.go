// Package stream fan-outs task events to realtime subscribers. The
// registry is keyed by organization id so events never cross tenants.
package stream

import (
	"context"
	"sync"
	"time"
)

// TaskEvent describes a change to a task within one organization.
type TaskEvent struct {
	Type      string    `json:"type"`
	OrgID     string    `json:"org_id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	orgID string
	ch    chan TaskEvent
}

// Broker is a lock-protected, injected registry of per-tenant
// subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// NewBroker initialises an empty registry.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one organization's events and
// returns the channel events arrive on. The channel is closed when the
// provided context ends.
func (b *Broker) Subscribe(ctx context.Context, orgID string) <-chan TaskEvent {
	ch := make(chan TaskEvent, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{orgID: orgID, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers the event to the subscribers of its organization
// only.
func (b *Broker) Publish(evt TaskEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.orgID != evt.OrgID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
