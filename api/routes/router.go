package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perennis1/studio-perennis-backend/api/controllers"
	reconciliationcontrollers "github.com/perennis1/studio-perennis-backend/api/controllers/reconciliation"
	webhookcontrollers "github.com/perennis1/studio-perennis-backend/api/controllers/webhooks"
	"github.com/perennis1/studio-perennis-backend/api/middleware"
	"github.com/perennis1/studio-perennis-backend/internal/catalog"
	checkoutsvc "github.com/perennis1/studio-perennis-backend/internal/checkout"
	"github.com/perennis1/studio-perennis-backend/internal/identity"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/library"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/internal/reconcile"
	razorpaywebhook "github.com/perennis1/studio-perennis-backend/internal/webhooks/razorpay"
	"github.com/perennis1/studio-perennis-backend/pkg/config"
	"github.com/perennis1/studio-perennis-backend/pkg/db"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
	"github.com/perennis1/studio-perennis-backend/pkg/redis"
)

// Deps collects everything the HTTP surface is wired to.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	Verifier        identity.Verifier
	CheckoutService checkoutsvc.Service
	OrdersService   *orders.Service
	OrdersRepo      *orders.Repository
	LibraryRepo     *library.Repository
	CatalogService  *catalog.Service
	LedgerService   *ledger.Service
	ReconcileSvc    *reconcile.Service
	WebhookService  *razorpaywebhook.Service
	RazorpayClient  *razorpay.Client
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	// The gateway cannot present a session token, so webhooks sit outside
	// the auth chain. The body signature is the authentication.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(deps.WebhookService, deps.RazorpayClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier, logg))
		r.Use(middleware.Idempotency(deps.Redis, cfg.Eventing.RequestIdempotencyTTL, logg))

		r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.OrdersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrdersService, logg))
		})
		r.Get("/library", controllers.LibraryList(deps.LibraryRepo, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier, logg))
		r.Use(middleware.AdminOnly(logg))

		r.Route("/catalog/variants", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateVariant(deps.CatalogService, logg))
			r.Post("/{variantId}/restock", controllers.AdminRestock(deps.CatalogService, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(deps.OrdersRepo, logg))
			r.Post("/{orderId}/refund", controllers.AdminRefundOrder(deps.OrdersService, logg))
		})
		r.Get("/ledger/events", controllers.AdminLedgerEvents(deps.LedgerService, logg))
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/verify", reconciliationcontrollers.Verify(deps.ReconcileSvc, logg))
			r.Post("/heal", reconciliationcontrollers.Heal(deps.ReconcileSvc, logg))
			r.Post("/rebuild", reconciliationcontrollers.Rebuild(deps.ReconcileSvc, logg))
		})
	})

	return r
}
