package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhpark-dev/shopmall-backend/api/routes"
	"github.com/jhpark-dev/shopmall-backend/internal/basket"
	"github.com/jhpark-dev/shopmall-backend/internal/catalog"
	"github.com/jhpark-dev/shopmall-backend/internal/orders"
	"github.com/jhpark-dev/shopmall-backend/pkg/config"
	"github.com/jhpark-dev/shopmall-backend/pkg/db"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
	"github.com/jhpark-dev/shopmall-backend/pkg/metrics"
	"github.com/jhpark-dev/shopmall-backend/pkg/migrate"
	"github.com/jhpark-dev/shopmall-backend/pkg/redis"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	productRepo := catalog.NewRepository(dbClient.DB())
	basketRepo := basket.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())

	anonStore, err := basket.NewAnonymousStore(redisClient, cfg.Basket.AnonymousCartTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create anonymous cart store", err)
		os.Exit(1)
	}

	basketService, err := basket.NewService(basketRepo, productRepo, anonStore, dbClient, checkoutMetrics, cfg.Basket.MaxLineQuantity)
	if err != nil {
		logg.Error(context.Background(), "failed to create basket service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orderRepo, basketRepo, productRepo, dbClient, checkoutMetrics, orders.CheckoutPolicy{
		DeliveryFee:           cfg.Checkout.DeliveryFee,
		FreeDeliveryThreshold: cfg.Checkout.FreeDeliveryThreshold,
		DeliveryPeriodDays:    cfg.Checkout.DefaultDeliveryPeriodDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, productRepo, basketService, ordersService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
