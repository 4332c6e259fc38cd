package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harvestfield/farmlink-backend/api/routes"
	"github.com/harvestfield/farmlink-backend/internal/auth"
	"github.com/harvestfield/farmlink-backend/internal/availability"
	"github.com/harvestfield/farmlink-backend/internal/cart"
	"github.com/harvestfield/farmlink-backend/internal/checkout"
	"github.com/harvestfield/farmlink-backend/internal/farms"
	"github.com/harvestfield/farmlink-backend/internal/orders"
	"github.com/harvestfield/farmlink-backend/internal/products"
	"github.com/harvestfield/farmlink-backend/internal/schedule"
	"github.com/harvestfield/farmlink-backend/internal/users"
	"github.com/harvestfield/farmlink-backend/pkg/auth/session"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
	"github.com/harvestfield/farmlink-backend/pkg/migrate"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
	"github.com/harvestfield/farmlink-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	farmsRepo := farms.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	scheduleRepo := schedule.NewRepository(gormDB)
	availabilityRepo := availability.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	farmService, err := farms.NewService(farmsRepo, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create farm service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productsRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	scheduleService, err := schedule.NewService(scheduleRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create schedule service", err)
		os.Exit(1)
	}

	availabilityService, err := availability.NewService(
		availabilityRepo,
		redisClient,
		dbClient,
		outboxService,
		cfg.Delivery.AvailabilityCacheTTL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		CartRepo:     cartRepo,
		OrdersRepo:   ordersRepo,
		Schedule:     scheduleService,
		Availability: availabilityService,
		Tx:           dbClient,
		Events:       outboxService,
		Delivery:     cfg.Delivery,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer, sessionManager, routes.Services{
			Auth:         authService,
			Farms:        farmService,
			Products:     productService,
			Cart:         cartService,
			Schedule:     scheduleService,
			Availability: availabilityService,
			Checkout:     checkoutService,
			Orders:       ordersService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
