package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perennis1/studio-perennis-backend/api/routes"
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
	"github.com/perennis1/studio-perennis-backend/pkg/migrate"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
	"github.com/perennis1/studio-perennis-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	conn := dbClient.DB()
	ledgerRepo := ledger.NewRepository(conn)
	ledgerService := ledger.NewService(ledgerRepo)
	catalogRepo := catalog.NewRepository(conn)
	catalogService := catalog.NewService(dbClient, catalogRepo, ledgerService, logg)
	ordersRepo := orders.NewRepository(conn)
	libraryRepo := library.NewRepository(conn)

	ordersService, err := orders.NewService(dbClient, ordersRepo, libraryRepo, ledgerService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	var razorpayClient *razorpay.Client
	if cfg.Razorpay.Enabled {
		razorpayClient, err = razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create razorpay client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "razorpay disabled, checkout will reject payment attempts")
	}

	checkoutService, err := newCheckoutService(dbClient, ordersRepo, catalogRepo, razorpayClient, ledgerService, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := razorpaywebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.RequestIdempotencyTTL, "webhooks:razorpay")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		TransactionRunner: dbClient,
		OrdersRepo:        ordersRepo,
		LibraryRepo:       libraryRepo,
		EventsRepo:        razorpaywebhook.NewEventRepository(conn),
		Ledger:            ledgerService,
		Guard:             webhookGuard,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(dbClient, ledgerRepo, catalogRepo, ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	verifier, err := identity.NewHTTPVerifier(cfg.Identity)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity verifier", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		Verifier:        verifier,
		CheckoutService: checkoutService,
		OrdersService:   ordersService,
		OrdersRepo:      ordersRepo,
		LibraryRepo:     libraryRepo,
		CatalogService:  catalogService,
		LedgerService:   ledgerService,
		ReconcileSvc:    reconcileService,
		WebhookService:  webhookService,
		RazorpayClient:  razorpayClient,
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

	server := &http.Server{Addr: addr, Handler: handler}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
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
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

// newCheckoutService keeps the nil gateway untyped so a disabled integration
// does not masquerade as a live one behind a non-nil interface.
func newCheckoutService(
	dbClient *db.Client,
	ordersRepo *orders.Repository,
	catalogRepo *catalog.Repository,
	razorpayClient *razorpay.Client,
	ledgerService *ledger.Service,
	cfg config.CheckoutConfig,
) (checkoutsvc.Service, error) {
	if razorpayClient == nil {
		return checkoutsvc.NewService(dbClient, ordersRepo, catalogRepo, nil, ledgerService, cfg)
	}
	return checkoutsvc.NewService(dbClient, ordersRepo, catalogRepo, razorpayClient, ledgerService, cfg)
}
