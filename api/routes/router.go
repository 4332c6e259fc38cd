package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvestfield/farmlink-backend/api/controllers"
	"github.com/harvestfield/farmlink-backend/api/middleware"
	authsvc "github.com/harvestfield/farmlink-backend/internal/auth"
	availabilitysvc "github.com/harvestfield/farmlink-backend/internal/availability"
	cartsvc "github.com/harvestfield/farmlink-backend/internal/cart"
	checkoutsvc "github.com/harvestfield/farmlink-backend/internal/checkout"
	farmsvc "github.com/harvestfield/farmlink-backend/internal/farms"
	ordersvc "github.com/harvestfield/farmlink-backend/internal/orders"
	productsvc "github.com/harvestfield/farmlink-backend/internal/products"
	schedulesvc "github.com/harvestfield/farmlink-backend/internal/schedule"
	"github.com/harvestfield/farmlink-backend/pkg/auth/session"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
	"github.com/harvestfield/farmlink-backend/pkg/metrics"
	"github.com/harvestfield/farmlink-backend/pkg/redis"
)

// Services bundles everything the HTTP surface serves.
type Services struct {
	Auth         authsvc.Service
	Farms        farmsvc.Service
	Products     productsvc.Service
	Cart         cartsvc.Service
	Schedule     schedulesvc.Service
	Availability availabilitysvc.Service
	Checkout     checkoutsvc.Service
	Orders       ordersvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promReg prometheus.Registerer,
	verifier session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(metrics.NewHTTPMetrics(promReg)),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	readyChecks := make([]func(context.Context) error, 0, 2)
	if dbP != nil {
		readyChecks = append(readyChecks, dbP.Ping)
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, redisClient.Ping)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyChecks...))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
				Post("/login", controllers.AuthLogin(svcs.Auth, logg))
			r.With(
				middleware.AuthRateLimit(registerPolicy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		})

		// Public storefront reads.
		r.Get("/farms", controllers.ListFarms(svcs.Farms, logg))
		r.Get("/farms/{farmId}", controllers.GetFarm(svcs.Farms, logg))
		r.Get("/products", controllers.ListProducts(svcs.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(svcs.Products, logg))
		r.Get("/delivery/schedule", controllers.GetDeliverySchedule(svcs.Schedule, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, verifier, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			farmerOnly := middleware.RequireRole(string(enums.UserRoleFarmer), logg)
			adminOnly := middleware.RequireRole(string(enums.UserRoleAdmin), logg)

			r.Get("/ping", controllers.PrivatePing())

			r.Post("/farms", controllers.CreateFarm(svcs.Farms, logg))
			r.Patch("/farms/{farmId}", controllers.UpdateFarm(svcs.Farms, logg))
			r.With(farmerOnly).Get("/farms/me/products", controllers.ListOwnProducts(svcs.Products, logg))
			r.With(farmerOnly).Post("/farms/me/products", controllers.CreateProduct(svcs.Products, logg))
			r.With(farmerOnly).Put("/farms/me/availability", controllers.UpsertOwnAvailability(svcs.Availability, logg))
			r.Patch("/products/{productId}", controllers.UpdateProduct(svcs.Products, logg))

			r.Get("/cart", controllers.GetCart(svcs.Cart, logg))
			r.Put("/cart", controllers.UpsertCart(svcs.Cart, logg))
			r.Post("/cart/consolidate", controllers.ConsolidateCart(svcs.Checkout, logg))

			r.Post("/delivery/availability", controllers.BulkAvailability(svcs.Availability, logg))
			r.Post("/delivery/resolve", controllers.ResolveDelivery(svcs.Checkout, logg))
			r.Get("/delivery/calendar", controllers.DeliveryCalendar(svcs.Checkout, logg))

			r.Post("/checkout", controllers.SubmitCheckout(svcs.Checkout, logg))

			r.Get("/orders", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(svcs.Orders, logg))
			r.Post("/orders/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))

			r.With(adminOnly).Put("/admin/delivery/schedule", controllers.UpsertDeliverySchedule(svcs.Schedule, logg))
			r.With(adminOnly).Get("/admin/orders", controllers.AdminListOrders(svcs.Orders, logg))
			r.With(adminOnly).Post("/admin/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(svcs.Orders, logg))
		})
	})

	return r
}
