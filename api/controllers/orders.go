package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/api/middleware"
	"github.com/otesta/otesta-backend/api/responses"
	"github.com/otesta/otesta-backend/api/validators"
	"github.com/otesta/otesta-backend/internal/orders"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/logger"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

type orderLineRequest struct {
	ProductID    string          `json:"product_id" validate:"required"`
	ProductName  string          `json:"product_name" validate:"required"`
	ProductImage string          `json:"product_image"`
	Price        decimal.Decimal `json:"price" validate:"required"`
	Quantity     int             `json:"quantity" validate:"required,gte=1"`
	Size         *string         `json:"size"`
}

type createOrderRequest struct {
	Items           []orderLineRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	Notes           string             `json:"notes"`
	ConversationID  string             `json:"conversation_id"`
}

func (req createOrderRequest) toCreateInput(email, name string) orders.CreateInput {
	lines := make([]orders.Line, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, orders.Line{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Price:        item.Price,
			Quantity:     item.Quantity,
			Size:         item.Size,
		})
	}
	return orders.CreateInput{
		CustomerEmail:   email,
		CustomerName:    name,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		ConversationID:  req.ConversationID,
	}
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// CreateOrder places an order for the authenticated shopper. The customer
// identity always comes from the token, never the body.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), req.toCreateInput(email, middleware.UserNameFromContext(r.Context())))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders returns the shopper's own orders. Admins see every order and may
// narrow by customer or status.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		filter := orders.ListFilter{CustomerEmail: email}
		if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin) {
			filter.CustomerEmail = validators.QueryString(r, "customer_email", "")
		}
		if raw := validators.QueryString(r, "status", ""); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = status
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetOrder fetches one order. Shoppers only see their own; a foreign order
// reads as not found rather than forbidden.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		order, err := svc.Get(r.Context(), chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		isAdmin := middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin)
		if !isAdmin && order.CustomerEmail != email {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func DeleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), enums.OrderStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
