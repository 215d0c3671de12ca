package realtime

import (
	"testing"
	"time"

	"taskboard/todo"
)

func TestHub_BroadcastToCollectionSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch1, unsub1 := h.Subscribe("todos")
	defer unsub1()
	ch2, unsub2 := h.Subscribe("todos")
	defer unsub2()
	other, unsubOther := h.Subscribe("users")
	defer unsubOther()

	event := todo.Event{Action: todo.ActionCreate, Record: todo.Todo{ID: "t1"}}
	h.Notify("todos", event)

	for _, ch := range []<-chan todo.Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Record.ID != "t1" || got.Action != todo.ActionCreate {
				t.Errorf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case e := <-other:
		t.Fatalf("users subscriber received todos event: %+v", e)
	default:
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch, unsub := h.Subscribe("todos")
	unsub()

	// Channel is closed after unsubscribe
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if got := h.SubscriberCount("todos"); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}

	// Notify after unsubscribe must not panic
	h.Notify("todos", todo.Event{Action: todo.ActionDelete, Record: todo.Todo{ID: "t1"}})

	// Unsubscribing twice is safe
	unsub()
}

func TestHub_SlowSubscriberIsSkipped(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	ch, unsub := h.Subscribe("todos")
	defer unsub()

	// Fill the buffer and then some; Notify must never block
	for i := 0; i < 100; i++ {
		h.Notify("todos", todo.Event{Action: todo.ActionUpdate, Record: todo.Todo{ID: "t1"}})
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained == 0 || drained > 16 {
				t.Fatalf("expected 1..16 buffered events, got %d", drained)
			}
			return
		}
	}
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("todos")
	h.Shutdown()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after shutdown")
	}
	// Unsubscribe after shutdown is safe
	unsub()

	// Subscribing after shutdown yields a closed channel
	ch2, _ := h.Subscribe("todos")
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel when subscribing after shutdown")
	}
}
