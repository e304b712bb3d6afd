package kv

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, ok, err := store.Get(ctx, "cart:demo"); err != nil || ok {
		t.Fatalf("expected empty slot, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "cart:demo", `[{"id":"p1"}]`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, ok, err := store.Get(ctx, "cart:demo")
	if err != nil || !ok {
		t.Fatalf("expected stored slot, got ok=%v err=%v", ok, err)
	}
	if value != `[{"id":"p1"}]` {
		t.Fatalf("unexpected payload %q", value)
	}

	if err := store.Delete(ctx, "cart:demo"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "cart:demo"); ok {
		t.Fatal("slot should be empty after delete")
	}
}

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	var got []string
	cancel := hub.Subscribe("cart:demo", func(payload string) {
		got = append(got, payload)
	})

	if err := hub.Publish(ctx, "cart:demo", "one"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := hub.Publish(ctx, "cart:other", "ignored"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	cancel()
	if err := hub.Publish(ctx, "cart:demo", "two"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("expected exactly the subscribed payload, got %v", got)
	}
}

func TestSlotSavePersistsBeforeNotify(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hub := NewHub()
	slot := NewSlot(store, hub, "otesta_products")

	var observed string
	slot.Watch(func(payload string) {
		// the persisted value must already match what observers receive
		stored, ok, err := store.Get(ctx, "otesta_products")
		if err != nil || !ok {
			t.Errorf("slot not persisted before notify: ok=%v err=%v", ok, err)
		}
		if stored != payload {
			t.Errorf("stored %q != notified %q", stored, payload)
		}
		observed = payload
	})

	if err := slot.Save(ctx, `["seed"]`); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if observed != `["seed"]` {
		t.Fatalf("observer missed payload, got %q", observed)
	}
}

func TestSlotWatchExternalSkipsOwnBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hub := NewHub()
	writer := NewSlot(store, hub, "otesta_orders")
	peer := NewSlot(store, hub, "otesta_orders")

	var own, external []string
	writer.WatchExternal(func(p string) { own = append(own, p) })
	peer.WatchExternal(func(p string) { external = append(external, p) })

	if err := writer.Save(ctx, `["one"]`); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if len(own) != 0 {
		t.Fatalf("writer must not observe its own save, got %v", own)
	}
	if len(external) != 1 || external[0] != `["one"]` {
		t.Fatalf("peer missed the save, got %v", external)
	}
}

func TestSlotWatchDropsStaleSequences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hub := NewHub()
	writer := NewSlot(store, hub, "otesta_orders")
	peer := NewSlot(store, hub, "otesta_orders")

	var got []string
	peer.Watch(func(p string) { got = append(got, p) })

	seq1, err := writer.Persist(ctx, `["first"]`)
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	seq2, err := writer.Persist(ctx, `["second"]`)
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	// deliveries may arrive reordered; the older one must be ignored
	if err := writer.Broadcast(ctx, seq2, `["second"]`); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}
	if err := writer.Broadcast(ctx, seq1, `["first"]`); err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	if len(got) != 1 || got[0] != `["second"]` {
		t.Fatalf("expected only the newest payload, got %v", got)
	}
}

func TestSlotWatchPassesPlainPayloadsThrough(t *testing.T) {
	hub := NewHub()
	slot := NewSlot(NewMemoryStore(), hub, "cart:demo")

	var got []string
	slot.Watch(func(p string) { got = append(got, p) })

	if err := hub.Publish(context.Background(), "cart:demo", `["plain"]`); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(got) != 1 || got[0] != `["plain"]` {
		t.Fatalf("expected the raw payload, got %v", got)
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	hub := NewHub()
	fan := NewFanout(hub, nil)

	var got string
	fan.Subscribe("s", func(p string) { got = p })
	if err := fan.Publish(context.Background(), "s", "x"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if got != "x" {
		t.Fatalf("expected payload to reach hub listener, got %q", got)
	}
}
