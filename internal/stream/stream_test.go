package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishIsTenantScoped(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acme := b.Subscribe(ctx, "org-acme")
	beta := b.Subscribe(ctx, "org-beta")

	b.Publish(TaskEvent{Type: "task.created", OrgID: "org-acme", TaskID: "t1", Title: "ship it"})

	select {
	case evt := <-acme:
		if evt.TaskID != "t1" || evt.OrgID != "org-acme" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("expected a defaulted timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("acme subscriber never received the event")
	}

	select {
	case evt := <-beta:
		t.Fatalf("event leaked across tenants: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "org-acme")
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected channel close, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed after context end")
	}

	// Publishing after unsubscribe must not panic or block.
	b.Publish(TaskEvent{Type: "task.created", OrgID: "org-acme", TaskID: "t2"})
}

func TestPublishDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "org-acme")
	for i := 0; i < 32; i++ {
		b.Publish(TaskEvent{Type: "task.created", OrgID: "org-acme", TaskID: "t"})
	}

	// The channel buffers 16; the rest were dropped, not queued.
	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != 16 {
				t.Fatalf("received %d events, want 16", received)
			}
			return
		}
	}
}
