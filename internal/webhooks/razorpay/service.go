package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/checkout/reservation"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/library"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordEventInput) error
}

// Outcome classifies how a delivery was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "PROCESSED"
	OutcomeDuplicate Outcome = "DUPLICATE"
	OutcomeIgnored   Outcome = "IGNORED"
)

// ProcessResult reports the disposition of one delivery.
type ProcessResult struct {
	Outcome Outcome
	OrderID *uuid.UUID
}

type ServiceParams struct {
	TransactionRunner txRunner
	OrdersRepo        *orders.Repository
	LibraryRepo       *library.Repository
	EventsRepo        *EventRepository
	Ledger            ledgerRecorder
	Guard             *IdempotencyGuard
	Logger            *logger.Logger
}

// Service applies payment webhook deliveries to order, inventory and library
// state. Every delivery runs in one transaction, so a processing failure
// rolls back the idempotency gate row along with any partial mutation and
// the gateway retry starts clean.
type Service struct {
	txRunner    txRunner
	ordersRepo  *orders.Repository
	libraryRepo *library.Repository
	eventsRepo  *EventRepository
	ledger      ledgerRecorder
	guard       *IdempotencyGuard
	log         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.LibraryRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "library repo required")
	}
	if params.EventsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "events repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &Service{
		txRunner:    params.TransactionRunner,
		ordersRepo:  params.OrdersRepo,
		libraryRepo: params.LibraryRepo,
		eventsRepo:  params.EventsRepo,
		ledger:      params.Ledger,
		guard:       params.Guard,
		log:         params.Logger,
	}, nil
}

// Process applies one delivery. Duplicates at either idempotency layer are
// acknowledged without reprocessing.
func (s *Service) Process(ctx context.Context, event *WebhookEvent) (*ProcessResult, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	if event.Event != EventPaymentCaptured && event.Event != EventPaymentFailed {
		return &ProcessResult{Outcome: OutcomeIgnored}, nil
	}
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity order_id missing")
	}
	if entity.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity id missing")
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// Redis being down must not block payment processing.
			s.warn(ctx, "idempotency guard unavailable", err)
		} else if seen {
			return &ProcessResult{Outcome: OutcomeDuplicate}, nil
		}
	}

	result, err := s.processInTx(ctx, event)
	if err != nil && s.guard != nil {
		if derr := s.guard.Delete(ctx, event.ID); derr != nil {
			s.warn(ctx, "clearing idempotency mark", derr)
		}
	}
	return result, err
}

func (s *Service) processInTx(ctx context.Context, event *WebhookEvent) (*ProcessResult, error) {
	var result *ProcessResult
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.eventsRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		libraryRepo := s.libraryRepo.WithTx(tx)

		inserted, err := eventsRepo.InsertIfAbsent(ctx, razorpay.Provider, event.ID)
		if err != nil {
			return err
		}
		if !inserted {
			result = &ProcessResult{Outcome: OutcomeDuplicate}
			return nil
		}

		entity := event.Payload.Payment.Entity
		order, err := ordersRepo.FindByGatewayOrderID(ctx, entity.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Not an order of ours. Keep the gate row so the gateway
				// stops retrying.
				s.warn(ctx, fmt.Sprintf("webhook for unknown gateway order %s", entity.OrderID), nil)
				result = &ProcessResult{Outcome: OutcomeIgnored}
				return nil
			}
			return err
		}

		if order.PaymentStatus != enums.PaymentStatusPending {
			result = &ProcessResult{Outcome: OutcomeIgnored, OrderID: &order.ID}
			return nil
		}

		switch event.Event {
		case EventPaymentCaptured:
			if err := s.applyCapture(ctx, tx, ordersRepo, libraryRepo, order, entity); err != nil {
				return err
			}
		case EventPaymentFailed:
			if err := s.applyFailure(ctx, tx, ordersRepo, order, entity); err != nil {
				return err
			}
		}
		result = &ProcessResult{Outcome: OutcomeProcessed, OrderID: &order.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) applyCapture(ctx context.Context, tx *gorm.DB, ordersRepo *orders.Repository, libraryRepo *library.Repository, order *models.Order, entity PaymentEntity) error {
	if entity.Amount != order.AmountPaise {
		// The money moved regardless; record the capture and flag the
		// discrepancy for reconciliation instead of bouncing the delivery.
		s.warn(ctx, fmt.Sprintf("captured amount %d differs from order amount %d (order %s)",
			entity.Amount, order.AmountPaise, order.ID), nil)
	}

	if err := ordersRepo.CreatePayment(ctx, &models.Payment{
		OrderID:     order.ID,
		Provider:    razorpay.Provider,
		ProviderRef: entity.ID,
		Status:      enums.PaymentStatusPaid,
		AmountPaise: entity.Amount,
	}); err != nil {
		return err
	}

	updated, err := ordersRepo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid)
	if err != nil {
		return err
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s left PENDING during processing", order.ID))
	}
	if err := ordersRepo.SetGatewayPaymentID(ctx, order.ID, entity.ID); err != nil {
		return err
	}

	hasPhysical := false
	for _, item := range order.Items {
		if item.Format.IsPhysical() {
			hasPhysical = true
			if err := reservation.CommitInventory(ctx, tx, item.VariantID, item.Qty); err != nil {
				return err
			}
			if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityInventory,
				EntityID:   item.VariantID,
				EventType:  enums.LedgerEventCommitted,
				ActorType:  enums.LedgerActorSystem,
				Payload:    ledger.StockPayload{Qty: item.Qty, OrderID: &order.ID},
			}); err != nil {
				return err
			}
			continue
		}

		entry := &models.LibraryEntry{
			UserID:  order.UserID,
			BookID:  item.BookID,
			Format:  item.Format,
			OrderID: &order.ID,
		}
		created, err := libraryRepo.Grant(ctx, entry)
		if err != nil {
			return err
		}
		if created {
			if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityLibrary,
				EntityID:   entry.ID,
				EventType:  enums.LedgerEventGranted,
				ActorType:  enums.LedgerActorSystem,
				Payload: ledger.LibraryPayload{
					UserID:  order.UserID,
					BookID:  item.BookID,
					Format:  item.Format,
					OrderID: &order.ID,
				},
			}); err != nil {
				return err
			}
		}
	}

	if hasPhysical {
		shipment, created, err := ordersRepo.CreateShipmentIfAbsent(ctx, order.ID)
		if err != nil {
			return err
		}
		if created {
			if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityShipment,
				EntityID:   shipment.ID,
				EventType:  enums.LedgerEventCreated,
				ActorType:  enums.LedgerActorSystem,
				Payload: ledger.ShipmentPayload{
					OrderID: order.ID,
					Status:  enums.ShipmentStatusPending,
				},
			}); err != nil {
				return err
			}
		}
	}

	return s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
		EntityType: enums.LedgerEntityOrder,
		EntityID:   order.ID,
		EventType:  enums.LedgerEventPaid,
		ActorType:  enums.LedgerActorSystem,
		Payload: ledger.OrderPayload{
			UserID:           order.UserID,
			AmountPaise:      order.AmountPaise,
			GatewayOrderID:   order.GatewayOrderID,
			GatewayPaymentID: entity.ID,
		},
	})
}

func (s *Service) applyFailure(ctx context.Context, tx *gorm.DB, ordersRepo *orders.Repository, order *models.Order, entity PaymentEntity) error {
	for _, item := range order.Items {
		if !item.Format.IsPhysical() {
			continue
		}
		if err := reservation.ReleaseInventory(ctx, tx, item.VariantID, item.Qty); err != nil {
			return err
		}
		if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			EntityType: enums.LedgerEntityInventory,
			EntityID:   item.VariantID,
			EventType:  enums.LedgerEventReleased,
			ActorType:  enums.LedgerActorSystem,
			Payload: ledger.StockPayload{
				Qty:     item.Qty,
				OrderID: &order.ID,
				Reason:  ledger.ReleaseReasonPaymentFailed,
			},
		}); err != nil {
			return err
		}
	}

	updated, err := ordersRepo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
	if err != nil {
		return err
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s left PENDING during processing", order.ID))
	}

	return s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
		EntityType: enums.LedgerEntityOrder,
		EntityID:   order.ID,
		EventType:  enums.LedgerEventFailed,
		ActorType:  enums.LedgerActorSystem,
		Payload: ledger.OrderPayload{
			UserID:         order.UserID,
			AmountPaise:    order.AmountPaise,
			GatewayOrderID: order.GatewayOrderID,
			Reason:         ledger.ReleaseReasonPaymentFailed,
		},
	})
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.log == nil {
		return
	}
	if err != nil {
		s.log.Error(ctx, msg, err)
		return
	}
	s.log.Warn(ctx, msg)
}
