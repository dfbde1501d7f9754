package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborline/storefront-backend/api/controllers"
	"github.com/harborline/storefront-backend/api/middleware"
	cartsvc "github.com/harborline/storefront-backend/internal/cart"
	checkoutsvc "github.com/harborline/storefront-backend/internal/checkout"
	ordersvc "github.com/harborline/storefront-backend/internal/orders"
	"github.com/harborline/storefront-backend/pkg/config"
	"github.com/harborline/storefront-backend/pkg/logger"
	pkgredis "github.com/harborline/storefront-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *pkgredis.Client
	Registry *prometheus.Registry

	Cart     cartsvc.Service
	Checkout checkoutsvc.Service
	Orders   ordersvc.Service
	Catalog  controllers.CatalogReader
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		var redisP controllers.Pinger
		if deps.Redis != nil {
			redisP = deps.Redis
		}
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisP))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		var idempotencyStore pkgredis.IdempotencyStore
		if deps.Redis != nil {
			idempotencyStore = deps.Redis
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Put("/items/{productId}", controllers.CartSetItemQuantity(deps.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
			})
			r.Get("/orders", controllers.UserOrders(deps.Orders, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(deps.Checkout, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrders(deps.Orders, logg))
			r.Get("/stats", controllers.AdminOrderStats(deps.Orders, logg))
			r.Get("/status-counts", controllers.AdminOrderStatusCounts(deps.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.Products(deps.Catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(deps.Catalog, logg))
		})
	})

	return r
}
