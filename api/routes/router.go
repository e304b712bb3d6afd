package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otesta/otesta-backend/api/controllers"
	"github.com/otesta/otesta-backend/api/middleware"
	"github.com/otesta/otesta-backend/internal/analytics"
	"github.com/otesta/otesta-backend/internal/cart"
	"github.com/otesta/otesta-backend/internal/catalog"
	"github.com/otesta/otesta-backend/internal/chat"
	"github.com/otesta/otesta-backend/internal/orders"
	"github.com/otesta/otesta-backend/internal/users"
	"github.com/otesta/otesta-backend/internal/wishlist"
	"github.com/otesta/otesta-backend/pkg/auth/session"
	"github.com/otesta/otesta-backend/pkg/config"
	"github.com/otesta/otesta-backend/pkg/db"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/redis"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Users     users.Service
	Catalog   catalog.Service
	Cart      cart.Service
	Wishlist  wishlist.Service
	Orders    orders.Service
	Chat      chat.Service
	Analytics analytics.Service
}

// NewRouter wires every storefront and admin endpoint. The catalog reads stay
// public so the shop window renders before login; everything else sits behind
// the bearer token.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions *session.Manager,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.Login(svcs.Users, sessions, cfg.JWT, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.Logout(sessions, cfg.JWT, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(svcs.Catalog, logg))
		r.Get("/{productID}", controllers.GetProduct(svcs.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Get("/users/profile", controllers.Profile(svcs.Users, logg))

		r.Route("/cart-items", func(r chi.Router) {
			r.Get("/", controllers.GetCart(svcs.Cart, logg))
			r.Post("/", controllers.AddCartItem(svcs.Cart, logg))
			r.Delete("/", controllers.ClearCart(svcs.Cart, logg))
			r.Patch("/{productID}", controllers.UpdateCartItem(svcs.Cart, logg))
			r.Delete("/{productID}", controllers.RemoveCartItem(svcs.Cart, logg))
		})

		r.Route("/wishlist-items", func(r chi.Router) {
			r.Get("/", controllers.ListWishlistItems(svcs.Wishlist, logg))
			r.Post("/", controllers.AddWishlistItem(svcs.Wishlist, logg))
			r.Delete("/", controllers.ClearWishlist(svcs.Wishlist, logg))
			r.Delete("/{productID}", controllers.RemoveWishlistItem(svcs.Wishlist, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Post("/", controllers.CreateOrder(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(svcs.Orders, logg))
		})

		r.Route("/chat-conversations", func(r chi.Router) {
			r.Post("/open", controllers.OpenConversation(svcs.Chat, logg))
			r.Get("/{conversationID}", controllers.GetConversation(svcs.Chat, logg))
			r.Post("/{conversationID}/messages", controllers.SendChatMessage(svcs.Chat, logg))
			r.Post("/{conversationID}/read", controllers.MarkConversationRead(svcs.Chat, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(svcs.Catalog, logg))
			r.Patch("/{productID}", controllers.UpdateProduct(svcs.Catalog, logg))
			r.Delete("/{productID}", controllers.DeleteProduct(svcs.Catalog, logg))
			r.Post("/{productID}/stock", controllers.AdjustProductStock(svcs.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(svcs.Orders, logg))
			r.Delete("/{orderID}", controllers.DeleteOrder(svcs.Orders, logg))
		})

		r.Route("/chat-conversations", func(r chi.Router) {
			r.Get("/", controllers.ListConversations(svcs.Chat, logg))
			r.Post("/{conversationID}/close", controllers.CloseConversation(svcs.Chat, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", controllers.AnalyticsSummary(svcs.Analytics, logg))
			r.Get("/inventory", controllers.AnalyticsInventory(svcs.Analytics, logg))
		})
	})

	return r
}
