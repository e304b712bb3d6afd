// Package kv models the named persisted slots backing every storefront store:
// one serialized payload per slot name, plus a change-broadcast channel so
// other observers of the same slot can refresh without re-reading storage.
package kv

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Slot names owned by the storefront stores. Each slot is written only by its
// owning store; read access for display is unrestricted.
const (
	SlotProducts      = "otesta_products"
	SlotOrders        = "otesta_orders"
	SlotConversations = "otesta_chat_conversations"

	SlotCartPrefix     = "cart:"
	SlotWishlistPrefix = "wishlist:"
)

// Store is the persisted key-value surface behind each named slot.
// Get distinguishes "slot empty" (ok=false, err=nil) from "slot unavailable"
// (err != nil); callers decide whether to fail open.
type Store interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// Notifier fans slot change payloads out to observers. Subscribe returns the
// unsubscribe handle; a listener must never write back to the slot it
// observes.
type Notifier interface {
	Publish(ctx context.Context, name, payload string) error
	Subscribe(name string, fn func(payload string)) (unsubscribe func())
}

// changeEnvelope frames broadcast payloads with the writing handle and its
// write sequence, so watchers can drop stale or self-originated deliveries.
// Payloads that do not carry the frame pass through untouched.
type changeEnvelope struct {
	Origin  string `json:"origin"`
	Seq     uint64 `json:"seq"`
	Payload string `json:"payload"`
}

// Slot binds a store and notifier to one named slot. Each handle carries its
// own origin id; everything it broadcasts is stamped with it.
type Slot struct {
	store    Store
	notifier Notifier
	name     string
	origin   string
	seq      atomic.Uint64
}

// NewSlot builds the handle for the named slot.
func NewSlot(store Store, notifier Notifier, name string) *Slot {
	return &Slot{store: store, notifier: notifier, name: name, origin: uuid.NewString()}
}

// Name returns the slot name.
func (s *Slot) Name() string {
	return s.name
}

// Load reads the current payload. ok is false when the slot has never been
// written.
func (s *Slot) Load(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, s.name)
}

// Persist writes the payload without notifying anyone and assigns it the
// next broadcast sequence. Callers that mutate under a lock must persist
// inside that lock, so the stored order matches the sequence order.
func (s *Slot) Persist(ctx context.Context, payload string) (uint64, error) {
	if err := s.store.Set(ctx, s.name, payload); err != nil {
		return 0, err
	}
	return s.seq.Add(1), nil
}

// Broadcast notifies observers of a payload Persist already wrote, framed
// under the sequence Persist returned.
func (s *Slot) Broadcast(ctx context.Context, seq uint64, payload string) error {
	if s.notifier == nil {
		return nil
	}
	framed, err := json.Marshal(changeEnvelope{Origin: s.origin, Seq: seq, Payload: payload})
	if err != nil {
		return err
	}
	return s.notifier.Publish(ctx, s.name, string(framed))
}

// Save persists the payload and broadcasts it to observers. The write must
// succeed before anyone is notified.
func (s *Slot) Save(ctx context.Context, payload string) error {
	seq, err := s.Persist(ctx, payload)
	if err != nil {
		return err
	}
	return s.Broadcast(ctx, seq, payload)
}

// Clear removes the payload without notifying observers.
func (s *Slot) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.name)
}

// Watch registers fn for future payloads of this slot, including the ones
// this handle broadcasts itself. A delivery that arrives after a newer
// sequence from the same writer has been seen is dropped.
func (s *Slot) Watch(fn func(payload string)) (unsubscribe func()) {
	return s.watch(fn, false)
}

// WatchExternal is Watch minus this handle's own broadcasts. State that is
// already current under the mutation lock refreshes through this, so a
// delayed self-delivery can never roll it back.
func (s *Slot) WatchExternal(fn func(payload string)) (unsubscribe func()) {
	return s.watch(fn, true)
}

func (s *Slot) watch(fn func(payload string), skipOwn bool) (unsubscribe func()) {
	if s.notifier == nil {
		return func() {}
	}
	var mu sync.Mutex
	latest := make(map[string]uint64)
	return s.notifier.Subscribe(s.name, func(raw string) {
		var env changeEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Origin == "" {
			fn(raw)
			return
		}
		if skipOwn && env.Origin == s.origin {
			return
		}
		mu.Lock()
		stale := env.Seq <= latest[env.Origin]
		if !stale {
			latest[env.Origin] = env.Seq
		}
		mu.Unlock()
		if stale {
			return
		}
		fn(env.Payload)
	})
}
