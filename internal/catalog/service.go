package catalog

import (
	"context"
	"encoding/json"
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

const metricsStore = "catalog"

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Category    enums.ProductCategory
	Query       string
	Size        string
	PriceMin    *decimal.Decimal
	PriceMax    *decimal.Decimal
	InStockOnly bool
}

// Service owns the seeded product catalog behind the products slot.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id string, patch Patch) ([]Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id, size string, delta int) (Product, error)
	Subscribe(fn func([]Product)) (unsubscribe func())
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Store    kv.Store
	Notifier kv.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.StoreMetrics
	Seed     []Product
	Now      func() time.Time
}

type service struct {
	store   kv.Store
	slot    *kv.Slot
	logg    *logger.Logger
	metrics *metrics.StoreMetrics
	seed    []Product
	now     func() time.Time

	mu       sync.Mutex
	products []Product
	loaded   bool
}

// NewService builds the catalog service. When Seed is nil the built-in
// catalog is used.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot store is required")
	}
	seed := params.Seed
	if seed == nil {
		seed = SeedProducts()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	svc := &service{
		store:   params.Store,
		slot:    kv.NewSlot(params.Store, params.Notifier, kv.SlotProducts),
		logg:    params.Logger,
		metrics: params.Metrics,
		seed:    seed,
		now:     now,
	}
	svc.slot.WatchExternal(func(payload string) {
		products, err := decodeProducts(payload)
		if err != nil {
			return
		}
		svc.mu.Lock()
		svc.products = products
		svc.loaded = true
		svc.mu.Unlock()
	})
	return svc, nil
}

// load reads the slot once. An empty slot is seeded and written back without
// a broadcast, so a first boot does not look like a mutation; an unreadable
// payload falls back to the seed without overwriting the slot.
func (s *service) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	payload, ok, err := s.slot.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "products slot unavailable")
	}
	if !ok {
		s.products = cloneProducts(s.seed)
		s.loaded = true
		encoded, err := json.Marshal(s.products)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode seed catalog")
		}
		if err := s.store.Set(ctx, s.slot.Name(), string(encoded)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed products slot")
		}
		return nil
	}
	products, decodeErr := decodeProducts(payload)
	if decodeErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSlot(ctx, s.slot.Name()), "falling back to seed catalog, stored payload unreadable")
		}
		products = cloneProducts(s.seed)
	}
	s.products = products
	s.loaded = true
	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]Product, 0, len(s.products))
	for _, product := range s.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.InStockOnly && !product.InStock {
			continue
		}
		if filter.Size != "" && !hasSize(product, filter.Size) {
			continue
		}
		if filter.PriceMin != nil && product.Price.LessThan(*filter.PriceMin) {
			continue
		}
		if filter.PriceMax != nil && product.Price.GreaterThan(*filter.PriceMax) {
			continue
		}
		if query != "" && !matchesQuery(product, query) {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

func hasSize(product Product, size string) bool {
	for _, s := range product.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

func matchesQuery(product Product, query string) bool {
	return strings.Contains(strings.ToLower(product.Name), query) ||
		strings.Contains(strings.ToLower(product.Description), query) ||
		strings.Contains(strings.ToLower(product.Material), query)
}

func (s *service) Get(ctx context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return Product{}, err
	}
	for _, product := range s.products {
		if product.ID == id {
			return product, nil
		}
	}
	return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *service) Create(ctx context.Context, product Product) (Product, error) {
	product.normalizeStock()
	if err := product.validate(); err != nil {
		return Product{}, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := s.now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	var created Product
	err := s.mutate(ctx, "create", func(products []Product) ([]Product, error) {
		for _, existing := range products {
			if existing.ID == product.ID {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product id already exists")
			}
		}
		created = product
		return append(products, product), nil
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

// Update patch-merges into the matching product. An unknown id leaves the
// catalog unchanged and returns it as-is.
func (s *service) Update(ctx context.Context, id string, patch Patch) ([]Product, error) {
	var out []Product
	err := s.mutate(ctx, "update", func(products []Product) ([]Product, error) {
		for i := range products {
			if products[i].ID != id {
				continue
			}
			updated := applyPatch(products[i], patch)
			updated.normalizeStock()
			if err := updated.validate(); err != nil {
				return nil, err
			}
			updated.UpdatedAt = s.now().UTC()
			products[i] = updated
			break
		}
		out = products
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneProducts(out), nil
}

// Delete removes the product; unknown ids are a no-op. The shrunken catalog
// is persisted, so the deletion survives a reload.
func (s *service) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", func(products []Product) ([]Product, error) {
		next := products[:0]
		for _, product := range products {
			if product.ID != id {
				next = append(next, product)
			}
		}
		return next, nil
	})
}

// AdjustStock shifts the per-size stock by delta and re-derives the aggregate
// fields. Stock never goes below zero.
func (s *service) AdjustStock(ctx context.Context, id, size string, delta int) (Product, error) {
	if strings.TrimSpace(size) == "" {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "size is required")
	}
	var adjusted Product
	err := s.mutate(ctx, "adjust_stock", func(products []Product) ([]Product, error) {
		for i := range products {
			if products[i].ID != id {
				continue
			}
			updated := products[i]
			updated.StockBySize = cloneStock(updated.StockBySize)
			if updated.StockBySize == nil {
				updated.StockBySize = make(map[string]int)
			}
			next := updated.StockBySize[size] + delta
			if next < 0 {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for size "+size)
			}
			updated.StockBySize[size] = next
			updated.normalizeStock()
			updated.UpdatedAt = s.now().UTC()
			products[i] = updated
			adjusted = updated
			return products, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	})
	if err != nil {
		return Product{}, err
	}
	return adjusted, nil
}

// Subscribe registers fn for every catalog change.
func (s *service) Subscribe(fn func([]Product)) (unsubscribe func()) {
	return s.slot.Watch(func(payload string) {
		products, err := decodeProducts(payload)
		if err != nil {
			return
		}
		fn(products)
	})
}

// mutate applies apply and persists the new catalog while still holding the
// lock, so concurrent mutations serialize against the slot write. Only the
// broadcast runs unlocked; watchers drop stale and self-originated payloads.
func (s *service) mutate(ctx context.Context, op string, apply func([]Product) ([]Product, error)) error {
	s.mu.Lock()
	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := apply(cloneProducts(s.products))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode catalog")
	}
	seq, err := s.slot.Persist(ctx, string(payload))
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save products slot")
	}
	s.products = next
	s.mu.Unlock()

	if err := s.slot.Broadcast(ctx, seq, string(payload)); err != nil {
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast products slot")
	}
	s.metrics.IncMutation(metricsStore, op)
	return nil
}

func applyPatch(product Product, patch Patch) Product {
	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Material != nil {
		product.Material = *patch.Material
	}
	if patch.Category != nil {
		product.Category = *patch.Category
	}
	if patch.ImageURL != nil {
		product.ImageURL = *patch.ImageURL
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Sizes != nil {
		product.Sizes = append([]string(nil), (*patch.Sizes)...)
	}
	if patch.StockBySize != nil {
		product.StockBySize = cloneStock(*patch.StockBySize)
	}
	if patch.StockQuantity != nil && patch.StockBySize == nil {
		product.StockQuantity = *patch.StockQuantity
		product.StockBySize = nil
	}
	return product
}

func decodeProducts(payload string) ([]Product, error) {
	if payload == "" {
		return nil, nil
	}
	var products []Product
	if err := json.Unmarshal([]byte(payload), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func cloneProducts(products []Product) []Product {
	if products == nil {
		return nil
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

func cloneStock(stock map[string]int) map[string]int {
	if stock == nil {
		return nil
	}
	out := make(map[string]int, len(stock))
	for size, n := range stock {
		out[size] = n
	}
	return out
}
