package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/internal/catalog"
	"github.com/otesta/otesta-backend/pkg/enums"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

type stubCatalogService struct {
	products   []catalog.Product
	listFilter catalog.ListFilter
	created    *catalog.Product
	deletedID  string
	adjusted   struct {
		id    string
		size  string
		delta int
	}
	err error
}

func (s *stubCatalogService) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, error) {
	s.listFilter = filter
	return s.products, s.err
}

func (s *stubCatalogService) Get(ctx context.Context, id string) (catalog.Product, error) {
	if s.err != nil {
		return catalog.Product{}, s.err
	}
	for _, product := range s.products {
		if product.ID == id {
			return product, nil
		}
	}
	return catalog.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubCatalogService) Create(ctx context.Context, product catalog.Product) (catalog.Product, error) {
	if s.err != nil {
		return catalog.Product{}, s.err
	}
	product.ID = "prod-new"
	s.created = &product
	return product, nil
}

func (s *stubCatalogService) Update(ctx context.Context, id string, patch catalog.Patch) ([]catalog.Product, error) {
	return s.products, s.err
}

func (s *stubCatalogService) Delete(ctx context.Context, id string) error {
	s.deletedID = id
	return s.err
}

func (s *stubCatalogService) AdjustStock(ctx context.Context, id, size string, delta int) (catalog.Product, error) {
	s.adjusted.id, s.adjusted.size, s.adjusted.delta = id, size, delta
	if s.err != nil {
		return catalog.Product{}, s.err
	}
	return catalog.Product{ID: id}, nil
}

func (s *stubCatalogService) Subscribe(fn func([]catalog.Product)) func() { return func() {} }

func TestListProducts(t *testing.T) {
	logg := testLogger()

	t.Run("nil service", func(t *testing.T) {
		w := httptest.NewRecorder()
		ListProducts(nil, logg)(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		assertStatus(t, w, http.StatusInternalServerError)
	})

	t.Run("passes filters through", func(t *testing.T) {
		svc := &stubCatalogService{products: []catalog.Product{{ID: "prod-001"}}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/products?category=suits&q=lana&in_stock=true", nil)
		ListProducts(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.listFilter.Category != enums.ProductCategorySuits {
			t.Fatalf("expected suits filter, got %q", svc.listFilter.Category)
		}
		if svc.listFilter.Query != "lana" || !svc.listFilter.InStockOnly {
			t.Fatalf("unexpected filter %+v", svc.listFilter)
		}
	})
}

func TestGetProduct(t *testing.T) {
	logg := testLogger()
	svc := &stubCatalogService{products: []catalog.Product{{ID: "prod-001", Name: "Completo Milano"}}}

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/products/prod-001", nil), "productID", "prod-001")
		GetProduct(svc, logg)(w, req)
		assertStatus(t, w, http.StatusOK)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/products/nope", nil), "productID", "nope")
		GetProduct(svc, logg)(w, req)
		assertStatus(t, w, http.StatusNotFound)
	})
}

func TestCreateProduct(t *testing.T) {
	logg := testLogger()

	t.Run("valid body", func(t *testing.T) {
		svc := &stubCatalogService{}
		body := `{"name":"Cravatta Seta","price":"59.00","category":"accessories","stock_quantity":10}`
		w := httptest.NewRecorder()
		CreateProduct(svc, logg)(w, newAuthedRequest(http.MethodPost, "/admin/products", body, "admin@otesta.it", enums.UserRoleAdmin))

		assertStatus(t, w, http.StatusCreated)
		if svc.created == nil || svc.created.Name != "Cravatta Seta" {
			t.Fatalf("expected create to reach the service, got %+v", svc.created)
		}
		if !svc.created.Price.Equal(decimal.RequireFromString("59.00")) {
			t.Fatalf("unexpected price %s", svc.created.Price)
		}
	})

	t.Run("bad category", func(t *testing.T) {
		svc := &stubCatalogService{}
		body := `{"name":"X","price":"10","category":"shoes"}`
		w := httptest.NewRecorder()
		CreateProduct(svc, logg)(w, newAuthedRequest(http.MethodPost, "/admin/products", body, "admin@otesta.it", enums.UserRoleAdmin))
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		svc := &stubCatalogService{}
		body := `{"name":"X","price":"10","category":"suits","surprise":true}`
		w := httptest.NewRecorder()
		CreateProduct(svc, logg)(w, newAuthedRequest(http.MethodPost, "/admin/products", body, "admin@otesta.it", enums.UserRoleAdmin))
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestAdjustProductStock(t *testing.T) {
	logg := testLogger()

	t.Run("forwards size and delta", func(t *testing.T) {
		svc := &stubCatalogService{}
		body := `{"size":"M","delta":-2}`
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodPost, "/admin/products/prod-001/stock", body, "admin@otesta.it", enums.UserRoleAdmin), "productID", "prod-001")
		AdjustProductStock(svc, logg)(w, req)

		assertStatus(t, w, http.StatusOK)
		if svc.adjusted.id != "prod-001" || svc.adjusted.size != "M" || svc.adjusted.delta != -2 {
			t.Fatalf("unexpected adjustment %+v", svc.adjusted)
		}
	})

	t.Run("insufficient stock maps to unprocessable", func(t *testing.T) {
		svc := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")}
		body := `{"size":"M","delta":-99}`
		w := httptest.NewRecorder()
		req := withURLParam(newAuthedRequest(http.MethodPost, "/admin/products/prod-001/stock", body, "admin@otesta.it", enums.UserRoleAdmin), "productID", "prod-001")
		AdjustProductStock(svc, logg)(w, req)
		assertStatus(t, w, http.StatusUnprocessableEntity)
	})
}

func TestDeleteProduct(t *testing.T) {
	svc := &stubCatalogService{}
	w := httptest.NewRecorder()
	req := withURLParam(newAuthedRequest(http.MethodDelete, "/admin/products/prod-003", "", "admin@otesta.it", enums.UserRoleAdmin), "productID", "prod-003")
	DeleteProduct(svc, testLogger())(w, req)

	assertStatus(t, w, http.StatusOK)
	if svc.deletedID != "prod-003" {
		t.Fatalf("expected delete of prod-003, got %q", svc.deletedID)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["status"] != "deleted" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
