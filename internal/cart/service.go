package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/otesta/otesta-backend/pkg/kv"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/metrics"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

const metricsStore = "cart"

// Service exposes cart operations keyed by the owning shopper.
type Service interface {
	Items(ctx context.Context, userEmail string) ([]LineItem, error)
	Summary(ctx context.Context, userEmail string) (Summary, error)
	Add(ctx context.Context, userEmail string, item LineItem) ([]LineItem, error)
	UpdateQuantity(ctx context.Context, userEmail, productID string, size *string, quantity int) ([]LineItem, error)
	Remove(ctx context.Context, userEmail, productID string, size *string) ([]LineItem, error)
	Clear(ctx context.Context, userEmail string) error
	Subscribe(userEmail string, fn func([]LineItem)) (unsubscribe func())
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Store    kv.Store
	Notifier kv.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
}

type service struct {
	store    kv.Store
	notifier kv.Notifier
	logg     *logger.Logger
	metrics  *metrics.StoreMetrics

	mu    sync.Mutex
	carts map[string]*cartState
}

type cartState struct {
	mu     sync.Mutex
	slot   *kv.Slot
	items  []LineItem
	loaded bool
}

// NewService builds the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot store is required")
	}
	return &service{
		store:    params.Store,
		notifier: params.Notifier,
		logg:     params.Logger,
		metrics:  params.Metrics,
		carts:    make(map[string]*cartState),
	}, nil
}

func (s *service) cartFor(userEmail string) *cartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.carts[userEmail]
	if !ok {
		state = &cartState{slot: kv.NewSlot(s.store, s.notifier, kv.SlotCartPrefix+userEmail)}
		s.carts[userEmail] = state
		// external writers replace the whole list, last writer wins
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

// load reads the slot once per cart. The caller holds the cart lock. A
// backing-store failure is reported as a dependency error; a
// present-but-unreadable payload fails open to an empty cart.
func (s *service) load(ctx context.Context, state *cartState) error {
	if state.loaded {
		return nil
	}
	payload, ok, err := state.slot.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart slot unavailable")
	}
	if !ok {
		state.items = nil
		state.loaded = true
		return nil
	}
	items, decodeErr := decodeItems(payload)
	if decodeErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSlot(ctx, state.slot.Name()), "discarding unreadable cart payload")
		}
		items = nil
	}
	state.items = items
	state.loaded = true
	return nil
}

func (s *service) Items(ctx context.Context, userEmail string) ([]LineItem, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	state := s.cartFor(userEmail)
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := s.load(ctx, state); err != nil {
		return nil, err
	}
	return cloneItems(state.items), nil
}

func (s *service) Summary(ctx context.Context, userEmail string) (Summary, error) {
	items, err := s.Items(ctx, userEmail)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(items), nil
}

// Add merges into an existing (id, size) line by summing quantities, or
// appends a new line. UpdateQuantity has overwrite semantics instead; the
// asymmetry is deliberate.
func (s *service) Add(ctx context.Context, userEmail string, item LineItem) ([]LineItem, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if item.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if item.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	return s.mutate(ctx, userEmail, "add", func(items []LineItem) []LineItem {
		for i := range items {
			if items[i].Matches(item.ID, item.Size) {
				items[i].Quantity += item.Quantity
				return items
			}
		}
		return append(items, item)
	})
}

// UpdateQuantity overwrites the quantity of the matching line; a value of
// zero or less removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userEmail, productID string, size *string, quantity int) ([]LineItem, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return s.Remove(ctx, userEmail, productID, size)
	}

	return s.mutate(ctx, userEmail, "update_quantity", func(items []LineItem) []LineItem {
		for i := range items {
			if items[i].Matches(productID, size) {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// Remove drops every line matching the (id, size) pair; unknown pairs are a
// no-op.
func (s *service) Remove(ctx context.Context, userEmail, productID string, size *string) ([]LineItem, error) {
	if err := validateUser(userEmail); err != nil {
		return nil, err
	}

	return s.mutate(ctx, userEmail, "remove", func(items []LineItem) []LineItem {
		next := items[:0]
		for _, existing := range items {
			if !existing.Matches(productID, size) {
				next = append(next, existing)
			}
		}
		return next
	})
}

func (s *service) Clear(ctx context.Context, userEmail string) error {
	if err := validateUser(userEmail); err != nil {
		return err
	}
	_, err := s.mutate(ctx, userEmail, "clear", func([]LineItem) []LineItem {
		return nil
	})
	return err
}

// Subscribe registers fn for every change to the shopper's cart, including
// changes arriving over the cross-process channel.
func (s *service) Subscribe(userEmail string, fn func([]LineItem)) (unsubscribe func()) {
	state := s.cartFor(userEmail)
	return state.slot.Watch(func(payload string) {
		items, err := decodeItems(payload)
		if err != nil {
			return
		}
		fn(items)
	})
}

// mutate applies apply and persists the new list while still holding the
// cart lock, so concurrent mutations serialize against the slot write and an
// acknowledged line can never be overwritten by an earlier save. Only the
// broadcast runs unlocked; watchers drop stale and self-originated payloads.
func (s *service) mutate(ctx context.Context, userEmail, op string, apply func([]LineItem) []LineItem) ([]LineItem, error) {
	state := s.cartFor(userEmail)

	state.mu.Lock()
	if err := s.load(ctx, state); err != nil {
		state.mu.Unlock()
		return nil, err
	}
	next := apply(cloneItems(state.items))
	payload, err := json.Marshal(next)
	if err != nil {
		state.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	seq, err := state.slot.Persist(ctx, string(payload))
	if err != nil {
		state.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart slot")
	}
	state.items = next
	state.mu.Unlock()

	if err := state.slot.Broadcast(ctx, seq, string(payload)); err != nil {
		s.metrics.IncSaveFailure(metricsStore)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast cart slot")
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

func decodeItems(payload string) ([]LineItem, error) {
	if payload == "" {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
