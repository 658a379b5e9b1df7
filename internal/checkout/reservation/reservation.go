package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
)

// InventoryReservationRequest asks for qty units of a variant to be held.
type InventoryReservationRequest struct {
	VariantID uuid.UUID
	Qty       int
}

// InventoryReservationResult reports the outcome for a single request.
type InventoryReservationResult struct {
	VariantID uuid.UUID
	Qty       int
	Reserved  bool
	Reason    string
}

const (
	ReasonOutOfStock     = "OUT_OF_STOCK"
	ReasonUnknownVariant = "UNKNOWN_VARIANT"
)

// ReserveInventory holds stock for each request inside the caller's
// transaction. Rows are locked per variant so concurrent checkouts cannot
// both take the last unit. A failed request does not abort the batch, the
// caller inspects results and decides whether to roll back.
func ReserveInventory(ctx context.Context, tx *gorm.DB, requests []InventoryReservationRequest) ([]InventoryReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}

	results := make([]InventoryReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid reservation qty %d for variant %s", req.Qty, req.VariantID))
		}

		inv, err := lockInventory(ctx, tx, req.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				results = append(results, InventoryReservationResult{
					VariantID: req.VariantID,
					Qty:       req.Qty,
					Reason:    ReasonUnknownVariant,
				})
				continue
			}
			return nil, err
		}

		if inv.Available() < req.Qty {
			results = append(results, InventoryReservationResult{
				VariantID: req.VariantID,
				Qty:       req.Qty,
				Reason:    ReasonOutOfStock,
			})
			continue
		}

		inv.Reserved += req.Qty
		if err := tx.WithContext(ctx).Save(inv).Error; err != nil {
			return nil, err
		}
		results = append(results, InventoryReservationResult{
			VariantID: req.VariantID,
			Qty:       req.Qty,
			Reserved:  true,
		})
	}
	return results, nil
}

// CommitInventory converts held stock into a sale: on-hand and reserved both
// drop by qty. Called when a payment captures.
func CommitInventory(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid commit qty %d for variant %s", qty, variantID))
	}
	inv, err := lockInventory(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if inv.Reserved < qty || inv.OnHand < qty {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot commit %d units of variant %s (on_hand=%d reserved=%d)", qty, variantID, inv.OnHand, inv.Reserved))
	}
	inv.OnHand -= qty
	inv.Reserved -= qty
	return tx.WithContext(ctx).Save(inv).Error
}

// ReleaseInventory returns held stock to the available pool without touching
// on-hand. Called when a payment fails or a pending checkout expires.
func ReleaseInventory(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid release qty %d for variant %s", qty, variantID))
	}
	inv, err := lockInventory(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if inv.Reserved < qty {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot release %d units of variant %s (reserved=%d)", qty, variantID, inv.Reserved))
	}
	inv.Reserved -= qty
	return tx.WithContext(ctx).Save(inv).Error
}

func lockInventory(ctx context.Context, tx *gorm.DB, variantID uuid.UUID) (*models.Inventory, error) {
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Inventory
	if err := query.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}
