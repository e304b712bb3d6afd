package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/internal/cart"
	"github.com/otesta/otesta-backend/pkg/enums"
)

type stubCartService struct {
	items     []cart.LineItem
	lastEmail string
	added     *cart.LineItem
	updated   struct {
		productID string
		size      *string
		quantity  int
	}
	removed struct {
		productID string
		size      *string
	}
	cleared bool
	err     error
}

func (s *stubCartService) Items(ctx context.Context, userEmail string) ([]cart.LineItem, error) {
	s.lastEmail = userEmail
	return s.items, s.err
}

func (s *stubCartService) Summary(ctx context.Context, userEmail string) (cart.Summary, error) {
	return cart.Summarize(s.items), s.err
}

func (s *stubCartService) Add(ctx context.Context, userEmail string, item cart.LineItem) ([]cart.LineItem, error) {
	s.lastEmail = userEmail
	s.added = &item
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, item)
	return s.items, nil
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userEmail, productID string, size *string, quantity int) ([]cart.LineItem, error) {
	s.lastEmail = userEmail
	s.updated.productID, s.updated.size, s.updated.quantity = productID, size, quantity
	return s.items, s.err
}

func (s *stubCartService) Remove(ctx context.Context, userEmail, productID string, size *string) ([]cart.LineItem, error) {
	s.lastEmail = userEmail
	s.removed.productID, s.removed.size = productID, size
	return s.items, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userEmail string) error {
	s.lastEmail = userEmail
	s.cleared = true
	return s.err
}

func (s *stubCartService) Subscribe(userEmail string, fn func([]cart.LineItem)) func() {
	return func() {}
}

func TestGetCart(t *testing.T) {
	logg := testLogger()

	t.Run("requires authentication", func(t *testing.T) {
		w := httptest.NewRecorder()
		GetCart(&stubCartService{}, logg)(w, httptest.NewRequest(http.MethodGet, "/cart-items", nil))
		assertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("returns items with derived summary", func(t *testing.T) {
		svc := &stubCartService{items: []cart.LineItem{
			{ID: "prod-001", Name: "Completo", Price: decimal.NewFromInt(100), Quantity: 2},
			{ID: "prod-002", Name: "Cravatta", Price: decimal.NewFromInt(50), Quantity: 1},
		}}
		w := httptest.NewRecorder()
		GetCart(svc, logg)(w, newAuthedRequest(http.MethodGet, "/cart-items", "", "demo@otesta.it", enums.UserRoleUser))

		assertStatus(t, w, http.StatusOK)
		if svc.lastEmail != "demo@otesta.it" {
			t.Fatalf("expected owner from context, got %q", svc.lastEmail)
		}

		var envelope struct {
			Data struct {
				Items   []cart.LineItem `json:"items"`
				Summary cart.Summary    `json:"summary"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.Summary.Count != 3 {
			t.Fatalf("expected count 3, got %d", envelope.Data.Summary.Count)
		}
		if !envelope.Data.Summary.Total.Equal(decimal.NewFromInt(250)) {
			t.Fatalf("expected total 250, got %s", envelope.Data.Summary.Total)
		}
	})
}

func TestAddCartItem(t *testing.T) {
	logg := testLogger()

	t.Run("valid body", func(t *testing.T) {
		svc := &stubCartService{}
		body := `{"product_id":"prod-001","name":"Completo","price":"890.00","quantity":1,"size":"50"}`
		w := httptest.NewRecorder()
		AddCartItem(svc, logg)(w, newAuthedRequest(http.MethodPost, "/cart-items", body, "demo@otesta.it", enums.UserRoleUser))

		assertStatus(t, w, http.StatusOK)
		if svc.added == nil || svc.added.ID != "prod-001" {
			t.Fatalf("expected add to reach the service, got %+v", svc.added)
		}
		if svc.added.Size == nil || *svc.added.Size != "50" {
			t.Fatalf("expected size 50, got %v", svc.added.Size)
		}
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		svc := &stubCartService{}
		body := `{"product_id":"prod-001","name":"Completo","price":"890.00","quantity":0}`
		w := httptest.NewRecorder()
		AddCartItem(svc, logg)(w, newAuthedRequest(http.MethodPost, "/cart-items", body, "demo@otesta.it", enums.UserRoleUser))
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestUpdateCartItem(t *testing.T) {
	svc := &stubCartService{}
	body := `{"size":"M","quantity":4}`
	w := httptest.NewRecorder()
	req := withURLParam(newAuthedRequest(http.MethodPatch, "/cart-items/prod-002", body, "demo@otesta.it", enums.UserRoleUser), "productID", "prod-002")
	UpdateCartItem(svc, testLogger())(w, req)

	assertStatus(t, w, http.StatusOK)
	if svc.updated.productID != "prod-002" || svc.updated.quantity != 4 {
		t.Fatalf("unexpected update %+v", svc.updated)
	}
	if svc.updated.size == nil || *svc.updated.size != "M" {
		t.Fatalf("expected size M, got %v", svc.updated.size)
	}
}

func TestRemoveCartItem(t *testing.T) {
	logg := testLogger()

	t.Run("size from query", func(t *testing.T) {
		svc := &stubCartService{}
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodDelete, "/cart-items/prod-002?size=M", "", "demo@otesta.it", enums.UserRoleUser), "productID", "prod-002")
		RemoveCartItem(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.removed.size == nil || *svc.removed.size != "M" {
			t.Fatalf("expected size M, got %v", svc.removed.size)
		}
	})

	t.Run("sizeless line", func(t *testing.T) {
		svc := &stubCartService{}
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodDelete, "/cart-items/prod-008", "", "demo@otesta.it", enums.UserRoleUser), "productID", "prod-008")
		RemoveCartItem(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.removed.size != nil {
			t.Fatalf("expected nil size, got %v", *svc.removed.size)
		}
	})

	t.Run("explicit empty size via body", func(t *testing.T) {
		svc := &stubCartService{}
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodDelete, "/cart-items/prod-002", `{"size":""}`, "demo@otesta.it", enums.UserRoleUser), "productID", "prod-002")
		RemoveCartItem(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.removed.size == nil || *svc.removed.size != "" {
			t.Fatalf("expected explicit empty size, got %v", svc.removed.size)
		}
	})

	t.Run("body size wins over query", func(t *testing.T) {
		svc := &stubCartService{}
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodDelete, "/cart-items/prod-002?size=L", `{"size":"M"}`, "demo@otesta.it", enums.UserRoleUser), "productID", "prod-002")
		RemoveCartItem(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.removed.size == nil || *svc.removed.size != "M" {
			t.Fatalf("expected body size M, got %v", svc.removed.size)
		}
	})
}

func TestClearCart(t *testing.T) {
	svc := &stubCartService{items: []cart.LineItem{{ID: "prod-001", Quantity: 1}}}
	w := httptest.NewRecorder()
	ClearCart(svc, testLogger())(w, newAuthedRequest(http.MethodDelete, "/cart-items", "", "demo@otesta.it", enums.UserRoleUser))

	assertStatus(t, w, http.StatusOK)
	if !svc.cleared {
		t.Fatal("expected clear to reach the service")
	}
}
