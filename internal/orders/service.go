// Package orders keeps placed orders behind the shared orders slot. Orders
// snapshot the cart lines at checkout, so later catalog edits never change a
// placed order.
package orders

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/kv"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/metrics"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

const metricsStore = "orders"

// Line is one purchased position inside an order.
type Line struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Size         *string         `json:"size,omitempty"`
}

// Order is one placed order.
type Order struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"order_number"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerName    string            `json:"customer_name"`
	Items           []Line            `json:"items"`
	Total           decimal.Decimal   `json:"total"`
	Status          enums.OrderStatus `json:"status"`
	ConversationID  string            `json:"conversation_id,omitempty"`
	ShippingAddress string            `json:"shipping_address"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CreateInput carries everything needed to place an order.
type CreateInput struct {
	CustomerEmail   string
	CustomerName    string
	Items           []Line
	ShippingAddress string
	Notes           string
	ConversationID  string
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	CustomerEmail string
	Status        enums.OrderStatus
}

// Service owns the orders slot.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Get(ctx context.Context, id string) (Order, error)
	Create(ctx context.Context, input CreateInput) (Order, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) (Order, error)
	Delete(ctx context.Context, id string) error
	Subscribe(fn func([]Order)) (unsubscribe func())
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	Store    kv.Store
	Notifier kv.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
	Now      func() time.Time
}

type service struct {
	slot    *kv.Slot
	logg    *logger.Logger
	metrics *metrics.StoreMetrics
	now     func() time.Time

	mu     sync.Mutex
	orders []Order
	loaded bool
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot store is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	svc := &service{
		slot:    kv.NewSlot(params.Store, params.Notifier, kv.SlotOrders),
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}
	svc.slot.WatchExternal(func(payload string) {
		orders, err := decodeOrders(payload)
		if err != nil {
			return
		}
		svc.mu.Lock()
		svc.orders = orders
		svc.loaded = true
		svc.mu.Unlock()
	})
	return svc, nil
}

func (s *service) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	payload, ok, err := s.slot.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "orders slot unavailable")
	}
	if !ok {
		s.orders = nil
		s.loaded = true
		return nil
	}
	orders, decodeErr := decodeOrders(payload)
	if decodeErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSlot(ctx, s.slot.Name()), "discarding unreadable orders payload")
		}
		orders = nil
	}
	s.orders = orders
	s.loaded = true
	return nil
}

// List returns orders newest first.
func (s *service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(s.orders))
	for _, order := range s.orders {
		if filter.CustomerEmail != "" && order.CustomerEmail != filter.CustomerEmail {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, order)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) Get(ctx context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return Order{}, err
	}
	for _, order := range s.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// Create places a pending order from the given lines. The total is computed
// from the lines, never trusted from the caller.
func (s *service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if len(input.Items) == 0 {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	total := decimal.Zero
	for _, line := range input.Items {
		if line.ProductID == "" {
			return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order line is missing a product id")
		}
		if line.Quantity < 1 {
			return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order line quantity must be at least 1")
		}
		if line.Price.IsNegative() {
			return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order line price must not be negative")
		}
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	now := s.now().UTC()
	order := Order{
		ID:              uuid.NewString(),
		OrderNumber:     generateOrderNumber(now),
		CustomerEmail:   input.CustomerEmail,
		CustomerName:    input.CustomerName,
		Items:           append([]Line(nil), input.Items...),
		Total:           total,
		Status:          enums.OrderStatusPending,
		ConversationID:  input.ConversationID,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.mutate(ctx, "create", func(orders []Order) ([]Order, error) {
		return append(orders, order), nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// UpdateStatus moves the order along the pending, confirmed, shipped,
// delivered chain. Cancellation is allowed before shipment.
func (s *service) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) (Order, error) {
	if !status.IsValid() {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	var updated Order
	err := s.mutate(ctx, "update_status", func(orders []Order) ([]Order, error) {
		for i := range orders {
			if orders[i].ID != id {
				continue
			}
			if !orders[i].Status.CanTransitionTo(status) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot move order from %s to %s", orders[i].Status, status))
			}
			orders[i].Status = status
			orders[i].UpdatedAt = s.now().UTC()
			updated = orders[i]
			return orders, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// Delete removes the order; unknown ids are a no-op. The shrunken list is
// persisted, so the removal survives a reload.
func (s *service) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", func(orders []Order) ([]Order, error) {
		next := orders[:0]
		for _, order := range orders {
			if order.ID != id {
				next = append(next, order)
			}
		}
		return next, nil
	})
}

func (s *service) Subscribe(fn func([]Order)) (unsubscribe func()) {
	return s.slot.Watch(func(payload string) {
		orders, err := decodeOrders(payload)
		if err != nil {
			return
		}
		fn(orders)
	})
}

// mutate applies apply and persists the new list while still holding the
// lock, so concurrent mutations serialize against the slot write. Only the
// broadcast runs unlocked; watchers drop stale and self-originated payloads.
func (s *service) mutate(ctx context.Context, op string, apply func([]Order) ([]Order, error)) error {
	s.mu.Lock()
	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := apply(cloneOrders(s.orders))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode orders")
	}
	seq, err := s.slot.Persist(ctx, string(payload))
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save orders slot")
	}
	s.orders = next
	s.mu.Unlock()

	if err := s.slot.Broadcast(ctx, seq, string(payload)); err != nil {
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast orders slot")
	}
	s.metrics.IncMutation(metricsStore, op)
	return nil
}

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderNumber yields ORD-<unix millis>-<6 random base36 chars>.
func generateOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			suffix[i] = orderNumberAlphabet[0]
			continue
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func decodeOrders(payload string) ([]Order, error) {
	if payload == "" {
		return nil, nil
	}
	var orders []Order
	if err := json.Unmarshal([]byte(payload), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func cloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	copy(out, orders)
	return out
}
