package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/checkout/reservation"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
	"github.com/perennis1/studio-perennis-backend/pkg/metrics"
)

const (
	pendingOrderSweepJobName = "pending-order-sweep"

	defaultPendingTTL = 30 * time.Minute
	defaultBatchSize  = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordEventInput) error
}

// PendingOrderSweepJobParams configure the stale checkout sweep.
type PendingOrderSweepJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	OrdersRepo *orders.Repository
	Ledger     ledgerRecorder
	Metrics    *metrics.SweepJobMetrics
	PendingTTL time.Duration
	BatchSize  int
}

// NewPendingOrderSweepJob builds the job that fails orders stuck in PENDING
// past the checkout TTL and returns their reserved stock to the pool.
func NewPendingOrderSweepJob(params PendingOrderSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &pendingOrderSweepJob{
		logg:       params.Logger,
		db:         params.DB,
		ordersRepo: params.OrdersRepo,
		ledger:     params.Ledger,
		metrics:    params.Metrics,
		ttl:        ttl,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type pendingOrderSweepJob struct {
	logg       *logger.Logger
	db         txRunner
	ordersRepo *orders.Repository
	ledger     ledgerRecorder
	metrics    *metrics.SweepJobMetrics
	ttl        time.Duration
	batch      int
	now        func() time.Time
}

func (j *pendingOrderSweepJob) Name() string { return pendingOrderSweepJobName }

func (j *pendingOrderSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.ordersRepo.FindPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	expired := 0
	released := 0
	for _, order := range stale {
		n, err := j.expireOrder(ctx, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if n >= 0 {
			expired++
			released += n
		}
	}
	if j.metrics != nil {
		j.metrics.AddReleased(pendingOrderSweepJobName, released)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates":            len(stale),
		"expired":               expired,
		"reservations_released": released,
	})
	j.logg.Info(logCtx, "pending order sweep complete")
	return multierr.Combine(errs...)
}

// expireOrder fails one stale order. Returns the number of reservations
// released, or -1 when the order was no longer PENDING by the time the
// transaction re-checked it.
func (j *pendingOrderSweepJob) expireOrder(ctx context.Context, order models.Order) (int, error) {
	released := -1
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.ordersRepo.WithTx(tx)
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		// A webhook may have settled the order between the scan and here.
		if current.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}

		count := 0
		for _, item := range current.Items {
			if !item.Format.IsPhysical() {
				continue
			}
			if err := reservation.ReleaseInventory(ctx, tx, item.VariantID, item.Qty); err != nil {
				return err
			}
			if err := j.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityInventory,
				EntityID:   item.VariantID,
				EventType:  enums.LedgerEventReleased,
				ActorType:  enums.LedgerActorSystem,
				Payload: ledger.StockPayload{
					Qty:     item.Qty,
					OrderID: &current.ID,
					Reason:  ledger.ReleaseReasonCheckoutExpired,
				},
			}); err != nil {
				return err
			}
			count++
		}

		updated, err := repo.UpdatePaymentStatus(ctx, current.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s changed state mid-sweep", current.ID))
		}

		if err := j.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			EntityType: enums.LedgerEntityOrder,
			EntityID:   current.ID,
			EventType:  enums.LedgerEventFailed,
			ActorType:  enums.LedgerActorSystem,
			Payload: ledger.OrderPayload{
				UserID:         current.UserID,
				AmountPaise:    current.AmountPaise,
				GatewayOrderID: current.GatewayOrderID,
				Reason:         ledger.ReleaseReasonCheckoutExpired,
			},
		}); err != nil {
			return err
		}
		released = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}
