// Package wishlist keeps each shopper's saved products behind a per-user
// slot. Entries are unique per product and capped.
package wishlist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/pkg/kv"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/metrics"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

const (
	metricsStore = "wishlist"

	// MaxItems bounds a single wishlist.
	MaxItems = 100
)

// Item is one saved product. The product fields are denormalized at save
// time, so the wishlist still renders if the product is later deleted.
type Item struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	ProductPrice decimal.Decimal `json:"product_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AddInput carries the denormalized product snapshot to save.
type AddInput struct {
	ProductID    string
	ProductName  string
	ProductImage string
	ProductPrice decimal.Decimal
}

// Service exposes wishlist operations keyed by the owning shopper.
type Service interface {
	Items(ctx context.Context, userEmail string) ([]Item, error)
	Contains(ctx context.Context, userEmail, productID string) (bool, error)
	Add(ctx context.Context, userEmail string, input AddInput) ([]Item, error)
	Remove(ctx context.Context, userEmail, productID string) ([]Item, error)
	Clear(ctx context.Context, userEmail string) error
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	Store    kv.Store
	Notifier kv.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
	Now      func() time.Time
}

type service struct {
	store    kv.Store
	notifier kv.Notifier
	logg     *logger.Logger
	metrics  *metrics.StoreMetrics
	now      func() time.Time

	mu    sync.Mutex
	lists map[string]*listState
}

type listState struct {
	mu     sync.Mutex
	slot   *kv.Slot
	items  []Item
	loaded bool
}

// NewService builds the wishlist service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot store is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:    params.Store,
		notifier: params.Notifier,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
		lists:    make(map[string]*listState),
	}, nil
}

func (s *service) listFor(userEmail string) *listState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.lists[userEmail]
	if !ok {
		state = &listState{slot: kv.NewSlot(s.store, s.notifier, kv.SlotWishlistPrefix+userEmail)}
		s.lists[userEmail] = state
		state.slot.WatchExternal(func(payload string) {
			items, err := decodeItems(payload)
			if err != nil {
				return
			}
			state.mu.Lock()
			state.items = items
			state.loaded = true
			state.mu.Unlock()
		})
	}
	return state
}

func (s *service) load(ctx context.Context, state *listState) error {
	if state.loaded {
		return nil
	}
	payload, ok, err := state.slot.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wishlist slot unavailable")
	}
	if !ok {
		state.items = nil
		state.loaded = true
		return nil
	}
	items, decodeErr := decodeItems(payload)
	if decodeErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSlot(ctx, state.slot.Name()), "discarding unreadable wishlist payload")
		}
		items = nil
	}
	state.items = items
	state.loaded = true
	return nil
}

func (s *service) Items(ctx context.Context, userEmail string) ([]Item, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	state := s.listFor(userEmail)
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := s.load(ctx, state); err != nil {
		return nil, err
	}
	return cloneItems(state.items), nil
}

func (s *service) Contains(ctx context.Context, userEmail, productID string) (bool, error) {
	items, err := s.Items(ctx, userEmail)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// Add saves the product unless it is already on the list. A full list
// rejects new entries.
func (s *service) Add(ctx context.Context, userEmail string, input AddInput) ([]Item, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	if input.ProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	return s.mutate(ctx, userEmail, "add", func(items []Item) ([]Item, error) {
		for _, item := range items {
			if item.ProductID == input.ProductID {
				return items, nil
			}
		}
		if len(items) >= MaxItems {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "wishlist is full")
		}
		return append(items, Item{
			ID:           uuid.NewString(),
			ProductID:    input.ProductID,
			ProductName:  input.ProductName,
			ProductImage: input.ProductImage,
			ProductPrice: input.ProductPrice,
			CreatedAt:    s.now().UTC(),
		}), nil
	})
}

// Remove drops the product from the list; unknown products are a no-op.
func (s *service) Remove(ctx context.Context, userEmail, productID string) ([]Item, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userEmail, "remove", func(items []Item) ([]Item, error) {
		next := items[:0]
		for _, item := range items {
			if item.ProductID != productID {
				next = append(next, item)
			}
		}
		return next, nil
	})
}

func (s *service) Clear(ctx context.Context, userEmail string) error {
	if err := validateUser(userEmail); err != nil {
		return err
	}
	_, err := s.mutate(ctx, userEmail, "clear", func([]Item) ([]Item, error) {
		return nil, nil
	})
	return err
}

// mutate applies apply and persists the new list while still holding the
// list lock, so concurrent mutations serialize against the slot write. Only
// the broadcast runs unlocked; watchers drop stale and self-originated
// payloads.
func (s *service) mutate(ctx context.Context, userEmail, op string, apply func([]Item) ([]Item, error)) ([]Item, error) {
	state := s.listFor(userEmail)

	state.mu.Lock()
	if err := s.load(ctx, state); err != nil {
		state.mu.Unlock()
		return nil, err
	}
	next, err := apply(cloneItems(state.items))
	if err != nil {
		state.mu.Unlock()
		return nil, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		state.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wishlist")
	}
	seq, err := state.slot.Persist(ctx, string(payload))
	if err != nil {
		state.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wishlist slot")
	}
	state.items = next
	state.mu.Unlock()

	if err := state.slot.Broadcast(ctx, seq, string(payload)); err != nil {
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast wishlist slot")
	}
	s.metrics.IncMutation(metricsStore, op)
	return cloneItems(next), nil
}

func validateUser(userEmail string) error {
	if userEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user email is required")
	}
	return nil
}

func decodeItems(payload string) ([]Item, error) {
	if payload == "" {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
