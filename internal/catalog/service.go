package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/pkg/db"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

// Service covers catalog administration: variant creation and stock intake.
// Stock never changes outside the ledger, so Restock appends a RESTOCKED
// event in the same transaction as the on-hand increment.
type Service struct {
	db     *db.Client
	repo   *Repository
	ledger *ledger.Service
	log    *logger.Logger
}

func NewService(client *db.Client, repo *Repository, ledgerSvc *ledger.Service, log *logger.Logger) *Service {
	return &Service{db: client, repo: repo, ledger: ledgerSvc, log: log}
}

// CreateVariantInput captures the admin variant creation request.
type CreateVariantInput struct {
	BookID     uuid.UUID
	Format     enums.BookFormat
	PricePaise int64
}

// CreateVariant provisions a sellable variant, with an empty inventory row
// for physical formats.
func (s *Service) CreateVariant(ctx context.Context, input CreateVariantInput) (*models.Variant, error) {
	if !input.Format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid book format")
	}
	if input.PricePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	variant := &models.Variant{
		BookID:     input.BookID,
		Format:     input.Format,
		PricePaise: input.PricePaise,
		Active:     true,
	}
	created, err := s.repo.CreateVariant(ctx, variant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating variant")
	}
	return created, nil
}

// RestockInput records a stock intake against a variant.
type RestockInput struct {
	VariantID uuid.UUID
	Qty       int
	Reason    string
	ActorID   *uuid.UUID
}

// Restock increments on-hand stock and ledgers the intake.
func (s *Service) Restock(ctx context.Context, input RestockInput) (*models.Inventory, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var result *models.Inventory
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		query := tx.WithContext(ctx)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var inv models.Inventory
		if err := query.First(&inv, "variant_id = ?", input.VariantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
			}
			return err
		}

		inv.OnHand += input.Qty
		if err := repo.SaveInventory(ctx, &inv); err != nil {
			return err
		}

		if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			EntityType: enums.LedgerEntityInventory,
			EntityID:   input.VariantID,
			EventType:  enums.LedgerEventRestocked,
			ActorType:  enums.LedgerActorAdmin,
			ActorID:    input.ActorID,
			Payload:    ledger.StockPayload{Qty: input.Qty, Reason: input.Reason},
		}); err != nil {
			return err
		}

		result = &inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		ctx = s.log.WithFields(ctx, map[string]any{
			"variant_id": input.VariantID.String(),
			"qty":        input.Qty,
		})
		s.log.Info(ctx, "restocked variant")
	}
	return result, nil
}
