package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/api/responses"
	"github.com/otesta/otesta-backend/api/validators"
	"github.com/otesta/otesta-backend/internal/catalog"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/logger"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

type createProductRequest struct {
	Name          string          `json:"name" validate:"required"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Material      string          `json:"material"`
	Category      string          `json:"category" validate:"required,oneof=suits outerwear accessories shirts trousers"`
	ImageURL      string          `json:"image_url"`
	Description   string          `json:"description"`
	Sizes         []string        `json:"sizes"`
	StockBySize   map[string]int  `json:"stock_by_size"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

func (req createProductRequest) toProduct() catalog.Product {
	return catalog.Product{
		Name:          req.Name,
		Price:         req.Price,
		Material:      req.Material,
		Category:      enums.ProductCategory(req.Category),
		ImageURL:      req.ImageURL,
		Description:   req.Description,
		Sizes:         req.Sizes,
		StockBySize:   req.StockBySize,
		StockQuantity: req.StockQuantity,
	}
}

type adjustStockRequest struct {
	Size  string `json:"size"`
	Delta int    `json:"delta" validate:"required"`
}

// ListProducts serves the public catalog with optional category, text and
// availability filters.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filter := catalog.ListFilter{
			Category:    enums.ProductCategory(validators.QueryString(r, "category", "")),
			Query:       validators.QueryString(r, "q", ""),
			Size:        validators.QueryString(r, "size", ""),
			InStockOnly: validators.QueryBool(r, "in_stock", false),
		}
		if raw := validators.QueryString(r, "price_min", ""); raw != "" {
			min, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_min"))
				return
			}
			filter.PriceMin = &min
		}
		if raw := validators.QueryString(r, "price_max", ""); raw != "" {
			max, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_max"))
				return
			}
			filter.PriceMax = &max
		}

		products, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		product, err := svc.Get(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), req.toProduct())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// UpdateProduct applies a partial patch. Unknown ids are a no-op and the full
// catalog is returned either way, matching the storefront's replace-on-read
// contract.
func UpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var patch catalog.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.Update(r.Context(), chi.URLParam(r, "productID"), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func DeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func AdjustProductStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.AdjustStock(r.Context(), chi.URLParam(r, "productID"), req.Size, req.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
