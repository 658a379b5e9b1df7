package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/library"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

const refundReason = "ADMIN_REFUND"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordEventInput) error
}

// Service covers order reads and the admin refund transition.
type Service struct {
	txRunner    txRunner
	repo        *Repository
	libraryRepo *library.Repository
	ledger      ledgerRecorder
	log         *logger.Logger
}

func NewService(tx txRunner, repo *Repository, libraryRepo *library.Repository, ledgerSvc ledgerRecorder, log *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if libraryRepo == nil {
		return nil, fmt.Errorf("library repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	return &Service{
		txRunner:    tx,
		repo:        repo,
		libraryRepo: libraryRepo,
		ledger:      ledgerSvc,
		log:         log,
	}, nil
}

// Get loads one of the user's orders. Orders belonging to someone else are
// reported as missing rather than forbidden.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List returns the user's orders newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// Refund transitions a PAID order to REFUNDED and revokes the digital
// grants the payment produced. Stock is not returned to the pool; physical
// goods come back through a manual restock once they arrive.
func (s *Service) Refund(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	var refunded *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		libraryRepo := s.libraryRepo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s, only PAID orders can be refunded", order.PaymentStatus))
		}

		updated, err := repo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPaid, enums.PaymentStatusRefunded)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state during refund")
		}
		if err := repo.UpdatePaymentsStatusByOrder(ctx, order.ID, enums.PaymentStatusRefunded); err != nil {
			return err
		}

		revoked, err := libraryRepo.RevokeByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, entry := range revoked {
			if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityLibrary,
				EntityID:   entry.ID,
				EventType:  enums.LedgerEventRevoked,
				ActorType:  enums.LedgerActorAdmin,
				ActorID:    actorID,
				Payload: ledger.LibraryPayload{
					UserID:  entry.UserID,
					BookID:  entry.BookID,
					Format:  entry.Format,
					OrderID: &order.ID,
				},
			}); err != nil {
				return err
			}
		}

		if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			EntityType: enums.LedgerEntityOrder,
			EntityID:   order.ID,
			EventType:  enums.LedgerEventRefunded,
			ActorType:  enums.LedgerActorAdmin,
			ActorID:    actorID,
			Payload: ledger.OrderPayload{
				UserID:         order.UserID,
				AmountPaise:    order.AmountPaise,
				GatewayOrderID: order.GatewayOrderID,
				Reason:         refundReason,
			},
		}); err != nil {
			return err
		}

		order.PaymentStatus = enums.PaymentStatusRefunded
		refunded = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		logCtx := s.log.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
		})
		s.log.Info(logCtx, "order refunded")
	}
	return refunded, nil
}
