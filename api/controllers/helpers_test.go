package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/otesta/otesta-backend/api/middleware"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "test",
		Level:       logger.ParseLevel("debug"),
		Output:      io.Discard,
	})
}

// newAuthedRequest builds a request whose context carries the authenticated
// shopper, as the auth middleware would have left it.
func newAuthedRequest(method, target, body, email string, role enums.UserRole) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserEmail(req.Context(), email)
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

// withURLParam attaches a chi route parameter so chi.URLParam resolves it.
func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d (body %s)", want, w.Code, w.Body.String())
	}
}
