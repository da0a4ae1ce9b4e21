package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jodise/jodise-backend/api/routes"
	"github.com/jodise/jodise-backend/internal/delivery"
	"github.com/jodise/jodise-backend/internal/fulfillment"
	"github.com/jodise/jodise-backend/internal/inventory"
	"github.com/jodise/jodise-backend/internal/notifications"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/payments"
	"github.com/jodise/jodise-backend/internal/products"
	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/internal/users"
	"github.com/jodise/jodise-backend/internal/wallet"
	"github.com/jodise/jodise-backend/internal/webhooks"
	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/db"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/metrics"
	"github.com/jodise/jodise-backend/pkg/migrate"
	"github.com/jodise/jodise-backend/pkg/outbox"
	"github.com/jodise/jodise-backend/pkg/redis"
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
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	sellersRepo := sellers.NewRepository(gormDB)
	usersRepo := users.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)
	deliveryRepo := delivery.NewRepository(gormDB)
	walletRepo := wallet.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	inventorySvc := inventory.NewService()

	ordersSvc, err := orders.NewService(ordersRepo, productsRepo, sellersRepo, inventorySvc, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	walletSvc, err := wallet.NewService(walletRepo, sellersRepo, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	deliverySvc, err := delivery.NewService(deliveryRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}
	notificationsSvc, err := notifications.NewService(notificationsRepo, sellersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	fulfillmentSvc, err := fulfillment.NewService(
		paymentsRepo,
		ordersRepo,
		ordersSvc,
		inventorySvc,
		walletSvc,
		deliverySvc,
		notificationsSvc,
		dbClient,
		outboxSvc,
		cfg.Marketplace,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	gatewayRegistry, err := buildGatewayRegistry(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to configure payment gateways", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(
		paymentsRepo,
		gatewayRegistry,
		ordersRepo,
		ordersSvc,
		usersRepo,
		fulfillmentSvc,
		cfg.Marketplace,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	webhookSvc, err := webhooks.NewService(webhooks.ServiceParams{
		Registry:    gatewayRegistry,
		Fulfillment: fulfillmentSvc,
		Metrics:     paymentMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
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

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		redisClient,
		redisClient,
		ordersSvc,
		paymentsSvc,
		walletSvc,
		notificationsSvc,
		webhookSvc,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildGatewayRegistry wires every gateway with credentials configured. The
// active gateway drives new checkouts; the others keep verifying webhooks
// for charges they opened before a switch.
func buildGatewayRegistry(cfg *config.Config) (*payments.Registry, error) {
	var gateways []payments.Gateway
	if cfg.Paystack.SecretKey != "" {
		gateway, err := payments.NewPaystackGateway(cfg.Paystack)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gateway)
	}
	if cfg.Stripe.SecretKey != "" {
		gateway, err := payments.NewStripeGateway(cfg.Stripe)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gateway)
	}
	if len(gateways) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no payment gateway configured")
	}
	return payments.NewRegistry(gateways...), nil
}
