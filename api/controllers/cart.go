package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/api/middleware"
	"github.com/otesta/otesta-backend/api/responses"
	"github.com/otesta/otesta-backend/api/validators"
	"github.com/otesta/otesta-backend/internal/cart"
	"github.com/otesta/otesta-backend/pkg/logger"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

type addCartItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gte=1"`
	Size      *string         `json:"size"`
	Image     string          `json:"image"`
}

func (req addCartItemRequest) toLineItem() cart.LineItem {
	return cart.LineItem{
		ID:       req.ProductID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
		Size:     req.Size,
		Image:    req.Image,
	}
}

type updateCartQuantityRequest struct {
	Size     *string `json:"size"`
	Quantity int     `json:"quantity"`
}

type removeCartItemRequest struct {
	Size *string `json:"size"`
}

type cartView struct {
	Items   []cart.LineItem `json:"items"`
	Summary cart.Summary    `json:"summary"`
}

func cartOwner(r *http.Request, logg *logger.Logger, w http.ResponseWriter) (string, bool) {
	email := middleware.UserEmailFromContext(r.Context())
	if email == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return "", false
	}
	return email, true
}

// GetCart returns the shopper's line items together with the derived count and
// total.
func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		items, err := svc.Items(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView{Items: items, Summary: cart.Summarize(items)})
	}
}

func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		var req addCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.Add(r.Context(), email, req.toLineItem())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView{Items: items, Summary: cart.Summarize(items)})
	}
}

// UpdateCartItem overwrites the quantity of one (product, size) line. A
// quantity of zero or less removes the line.
func UpdateCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		var req updateCartQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.UpdateQuantity(r.Context(), email, chi.URLParam(r, "productID"), req.Size, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView{Items: items, Summary: cart.Summarize(items)})
	}
}

// RemoveCartItem deletes one line, so the same product in other sizes
// survives. The size comes from an optional JSON body; a bodyless request
// falls back to the size query parameter. Only the body can address a line
// whose size is the empty string, which the query cannot distinguish from an
// absent one.
func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		var size *string
		if r.ContentLength != 0 {
			var req removeCartItemRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			size = req.Size
		} else if raw := r.URL.Query().Get("size"); raw != "" {
			size = &raw
		}

		items, err := svc.Remove(r.Context(), email, chi.URLParam(r, "productID"), size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView{Items: items, Summary: cart.Summarize(items)})
	}
}

func ClearCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		if err := svc.Clear(r.Context(), email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartView{Items: []cart.LineItem{}, Summary: cart.Summary{}})
	}
}
