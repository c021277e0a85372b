package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhpark-dev/shopmall-backend/api/controllers"
	basketcontrollers "github.com/jhpark-dev/shopmall-backend/api/controllers/basket"
	ordercontrollers "github.com/jhpark-dev/shopmall-backend/api/controllers/orders"
	productcontrollers "github.com/jhpark-dev/shopmall-backend/api/controllers/products"
	"github.com/jhpark-dev/shopmall-backend/api/middleware"
	internalbasket "github.com/jhpark-dev/shopmall-backend/internal/basket"
	"github.com/jhpark-dev/shopmall-backend/internal/catalog"
	internalorders "github.com/jhpark-dev/shopmall-backend/internal/orders"
	"github.com/jhpark-dev/shopmall-backend/pkg/config"
	"github.com/jhpark-dev/shopmall-backend/pkg/db"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
	"github.com/jhpark-dev/shopmall-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	productRepo catalog.ProductRepository,
	basketService internalbasket.Service,
	ordersService internalorders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	checkoutPolicy := middleware.CheckoutRateLimitPolicy{
		Window:       cfg.Checkout.RateLimitWindow,
		PerUserLimit: cfg.Checkout.RateLimitPerUser,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/{productCode}", productcontrollers.Detail(productRepo, logg))
	})

	// pre-login session cart, no identity required
	r.Post("/api/v1/session-basket/lines", basketcontrollers.SessionAddLine(basketService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.RequireUser(logg))

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", basketcontrollers.Fetch(basketService, logg))
			r.Delete("/", basketcontrollers.Clear(basketService, logg))
			r.Post("/lines", basketcontrollers.AddLine(basketService, logg))
			r.Patch("/lines", basketcontrollers.UpdateLines(basketService, logg))
			r.Delete("/lines", basketcontrollers.RemoveLines(basketService, logg))
			r.Post("/refresh", basketcontrollers.RefreshPrices(basketService, logg))
			r.Post("/merge", basketcontrollers.Merge(basketService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.CheckoutRateLimit(checkoutPolicy, redisClient, logg)).
				Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(ordersService, logg))
			r.Patch("/{orderId}/payment", ordercontrollers.SetPayment(ordersService, logg))
			r.Post("/{orderId}/finalize", ordercontrollers.Finalize(ordersService, logg))
			r.Delete("/{orderId}", ordercontrollers.Delete(ordersService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Patch("/{productCode}/sale-status", productcontrollers.SetSaleStatus(productRepo, logg))
		})
	})

	return r
}
