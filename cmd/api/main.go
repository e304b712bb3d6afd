package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/otesta/otesta-backend/api/routes"
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
	"github.com/otesta/otesta-backend/pkg/kv"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/metrics"
	"github.com/otesta/otesta-backend/pkg/migrate"
	"github.com/otesta/otesta-backend/pkg/redis"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(registry)

	// Redis is optional. With a broker configured the slot broadcasts cross
	// process boundaries and sessions survive restarts; without one everything
	// stays in-process.
	var redisClient *redis.Client
	var redisNotifier *kv.RedisNotifier
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisNotifier = kv.NewRedisNotifier(redisClient.Raw())
	} else {
		logg.Warn(context.Background(), "redis not configured, using in-process sessions and notifications")
	}

	var sessions *session.Manager
	if redisClient != nil {
		sessions, err = session.NewManager(redisClient, cfg.JWT)
	} else {
		sessions, err = session.NewMemoryManager(cfg.JWT)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	hub := kv.NewHub()
	var notifier kv.Notifier = hub
	if redisNotifier != nil {
		notifier = kv.NewFanout(hub, redisNotifier)
	}
	slotStore := kv.NewGormStore(dbClient.DB())

	usersService, err := users.NewService(users.ServiceParams{
		Repository: users.NewRepository(dbClient.DB()),
		Logger:     logg,
		Password:   cfg.Password,
		Seed:       cfg.Seed,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}
	if err := usersService.SeedAccounts(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to seed accounts", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Store:    slotStore,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  storeMetrics,
		Seed:     catalog.SeedProducts(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Store:    slotStore,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  storeMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		Store:    slotStore,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  storeMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Store:    slotStore,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  storeMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.ServiceParams{
		Store:    slotStore,
		Notifier: notifier,
		Logger:   logg,
		Metrics:  storeMetrics,
		Chat:     cfg.Chat,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}
	defer chatService.Shutdown()

	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Catalog: catalogService,
		Orders:  ordersService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, sessions, registry, routes.Services{
		Users:     usersService,
		Catalog:   catalogService,
		Cart:      cartService,
		Wishlist:  wishlistService,
		Orders:    ordersService,
		Chat:      chatService,
		Analytics: analyticsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)
		if redisNotifier != nil {
			shutdownErr = multierr.Append(shutdownErr, redisNotifier.Close())
		}
		if shutdownErr != nil {
			logg.Error(ctx, "error during shutdown", shutdownErr)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
