package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jodise/jodise-backend/api/controllers"
	"github.com/jodise/jodise-backend/api/middleware"
	"github.com/jodise/jodise-backend/internal/notifications"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/payments"
	"github.com/jodise/jodise-backend/internal/wallet"
	"github.com/jodise/jodise-backend/internal/webhooks"
	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/db"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idemStore redis.IdempotencyStore,
	windowStore middleware.WindowStore,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	walletSvc wallet.Service,
	notificationsSvc notifications.Service,
	webhookSvc *webhooks.Service,
	metricsHandler http.Handler,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Gateway callbacks and tracking lookups carry no bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookRateLimit(windowStore, logg))
		r.Post("/payment/{gateway}", controllers.PaymentWebhook(webhookSvc, logg))
	})
	r.Get("/api/v1/orders/track/{code}", controllers.TrackOrder(ordersSvc, logg))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Use(middleware.RateLimit())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(ordersSvc, logg))
			r.Post("/items", controllers.CartAddItem(ordersSvc, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(ordersSvc, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(ordersSvc, logg))
		})

		r.Route("/v1/checkout/pay", func(r chi.Router) {
			r.Post("/init", controllers.CheckoutInit(paymentsSvc, logg))
			r.Get("/verify/{reference}", controllers.CheckoutVerify(paymentsSvc, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})

		r.Route("/v1/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole("seller", logg))
			r.Get("/wallet", controllers.SellerWalletStatement(walletSvc, logg))
			r.Post("/payouts/requests", controllers.SellerPayoutRequest(walletSvc, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Post("/payouts/requests/{requestId}/decide", controllers.AdminPayoutDecide(walletSvc, logg))
		})
	})

	return r
}
