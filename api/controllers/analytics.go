package controllers

import (
	"net/http"

	"github.com/otesta/otesta-backend/api/responses"
	"github.com/otesta/otesta-backend/api/validators"
	"github.com/otesta/otesta-backend/internal/analytics"
	"github.com/otesta/otesta-backend/pkg/logger"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

func AnalyticsSummary(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func AnalyticsInventory(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		inventory, err := svc.Inventory(r.Context(), validators.QueryInt(r, "low_stock_threshold", 0))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory)
	}
}
