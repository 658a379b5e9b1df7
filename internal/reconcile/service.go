package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/internal/catalog"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/internal/replay"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

// RebuildConfirmation is the literal an operator must supply to run a cold
// start rebuild. A boolean is too easy to set by accident.
const RebuildConfirmation = "REBUILD FROM LEDGER"

// Diff kinds reported by Verify.
const (
	DiffMissingRow     = "MISSING_ROW"
	DiffMismatch       = "MISMATCH"
	DiffMissingOrder   = "MISSING_ORDER"
	DiffStatusMismatch = "STATUS_MISMATCH"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Filter scopes a verify or heal run.
type Filter struct {
	EntityType enums.LedgerEntityType
	EntityID   *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// InventoryDiff reports drift on one variant's stock position.
type InventoryDiff struct {
	Kind             string    `json:"kind"`
	VariantID        uuid.UUID `json:"variant_id"`
	ExpectedOnHand   int       `json:"expected_on_hand"`
	ExpectedReserved int       `json:"expected_reserved"`
	ActualOnHand     int       `json:"actual_on_hand,omitempty"`
	ActualReserved   int       `json:"actual_reserved,omitempty"`
}

// OrderDiff reports drift on one order's lifecycle status.
type OrderDiff struct {
	Kind           string              `json:"kind"`
	OrderID        uuid.UUID           `json:"order_id"`
	ExpectedStatus enums.PaymentStatus `json:"expected_status"`
	ActualStatus   enums.PaymentStatus `json:"actual_status,omitempty"`
}

// VerifyReport is the outcome of a read-only drift scan.
type VerifyReport struct {
	OK             bool            `json:"ok"`
	InventoryDiffs []InventoryDiff `json:"inventory_diffs"`
	OrderDiffs     []OrderDiff     `json:"order_diffs"`
	EventsReplayed int             `json:"events_replayed"`
}

// HealMode labels the two heal behaviors.
type HealMode string

const (
	HealModeDryRun HealMode = "DRY_RUN"
	HealModeApply  HealMode = "APPLY"
)

// Fix records one correction heal applied (or would apply, in dry run).
type Fix struct {
	Kind     string    `json:"kind"`
	EntityID uuid.UUID `json:"entity_id"`
	Applied  bool      `json:"applied"`
	Detail   string    `json:"detail,omitempty"`
}

// Failure records a correction that could not be written after a retry.
type Failure struct {
	EntityID uuid.UUID `json:"entity_id"`
	Reason   string    `json:"reason"`
}

// HealReport is the outcome of a heal run.
type HealReport struct {
	Mode     HealMode     `json:"mode"`
	Verify   VerifyReport `json:"verify"`
	Fixes    []Fix        `json:"fixes"`
	Failures []Failure    `json:"failures"`
}

// RebuildReport is the outcome of a cold start rebuild.
type RebuildReport struct {
	EventsReplayed     int `json:"events_replayed"`
	InventoriesWritten int `json:"inventories_written"`
	InventoriesZeroed  int `json:"inventories_zeroed"`
	OrdersWritten      int `json:"orders_written"`
	OrdersCreated      int `json:"orders_created"`
}

// Service compares ledger-derived state against the materialized tables and
// optionally repairs them. The ledger is never written here.
type Service struct {
	tx          txRunner
	ledgerRepo  *ledger.Repository
	catalogRepo *catalog.Repository
	ordersRepo  *orders.Repository
	log         *logger.Logger
}

func NewService(tx txRunner, ledgerRepo *ledger.Repository, catalogRepo *catalog.Repository, ordersRepo *orders.Repository, log *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &Service{
		tx:          tx,
		ledgerRepo:  ledgerRepo,
		catalogRepo: catalogRepo,
		ordersRepo:  ordersRepo,
		log:         log,
	}, nil
}

// Verify replays the (optionally scoped) ledger and diffs the result against
// the materialized rows. Strictly read-only.
func (s *Service) Verify(ctx context.Context, filter Filter) (*VerifyReport, error) {
	events, err := s.ledgerRepo.ListAll(ctx, ledger.Filter{
		EntityType: filter.EntityType,
		EntityID:   filter.EntityID,
		From:       filter.From,
		To:         filter.To,
	})
	if err != nil {
		return nil, err
	}
	state := replay.Replay(events)

	report := &VerifyReport{
		OK:             true,
		InventoryDiffs: []InventoryDiff{},
		OrderDiffs:     []OrderDiff{},
		EventsReplayed: len(events),
	}

	if filter.EntityType == "" || filter.EntityType == enums.LedgerEntityInventory {
		if err := s.diffInventory(ctx, state, report); err != nil {
			return nil, err
		}
	}
	if filter.EntityType == "" || filter.EntityType == enums.LedgerEntityOrder {
		if err := s.diffOrders(ctx, state, report); err != nil {
			return nil, err
		}
	}

	report.OK = len(report.InventoryDiffs) == 0 && len(report.OrderDiffs) == 0
	return report, nil
}

func (s *Service) diffInventory(ctx context.Context, state *replay.State, report *VerifyReport) error {
	for variantID, expected := range state.Inventory {
		actual, err := s.catalogRepo.GetInventory(ctx, variantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.InventoryDiffs = append(report.InventoryDiffs, InventoryDiff{
					Kind:             DiffMissingRow,
					VariantID:        variantID,
					ExpectedOnHand:   expected.OnHand,
					ExpectedReserved: expected.Reserved,
				})
				continue
			}
			return err
		}
		if actual.OnHand != expected.OnHand || actual.Reserved != expected.Reserved {
			report.InventoryDiffs = append(report.InventoryDiffs, InventoryDiff{
				Kind:             DiffMismatch,
				VariantID:        variantID,
				ExpectedOnHand:   expected.OnHand,
				ExpectedReserved: expected.Reserved,
				ActualOnHand:     actual.OnHand,
				ActualReserved:   actual.Reserved,
			})
		}
	}
	return nil
}

func (s *Service) diffOrders(ctx context.Context, state *replay.State, report *VerifyReport) error {
	for orderID, expected := range state.Orders {
		actual, err := s.ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.OrderDiffs = append(report.OrderDiffs, OrderDiff{
					Kind:           DiffMissingOrder,
					OrderID:        orderID,
					ExpectedStatus: expected.Status,
				})
				continue
			}
			return err
		}
		if actual.PaymentStatus != expected.Status {
			report.OrderDiffs = append(report.OrderDiffs, OrderDiff{
				Kind:           DiffStatusMismatch,
				OrderID:        orderID,
				ExpectedStatus: expected.Status,
				ActualStatus:   actual.PaymentStatus,
			})
		}
	}
	return nil
}

// Heal runs Verify and, in apply mode, overwrites drifted materialized rows
// with the replay-derived values. Dry run is the default posture; apply mode
// is an explicit operator decision. Each correction is retried once, then
// reported as a per-entity failure.
func (s *Service) Heal(ctx context.Context, filter Filter, dryRun bool) (*HealReport, error) {
	verify, err := s.Verify(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &HealReport{
		Mode:     HealModeDryRun,
		Verify:   *verify,
		Fixes:    []Fix{},
		Failures: []Failure{},
	}
	if !dryRun {
		report.Mode = HealModeApply
	}

	for _, diff := range verify.InventoryDiffs {
		fix := Fix{
			Kind:     diff.Kind,
			EntityID: diff.VariantID,
			Detail: fmt.Sprintf("on_hand %d -> %d, reserved %d -> %d",
				diff.ActualOnHand, diff.ExpectedOnHand, diff.ActualReserved, diff.ExpectedReserved),
		}
		if dryRun {
			report.Fixes = append(report.Fixes, fix)
			continue
		}
		if err := s.withRetry(ctx, func() error {
			return s.writeInventory(ctx, diff.VariantID, diff.ExpectedOnHand, diff.ExpectedReserved)
		}); err != nil {
			report.Failures = append(report.Failures, Failure{EntityID: diff.VariantID, Reason: err.Error()})
			continue
		}
		fix.Applied = true
		report.Fixes = append(report.Fixes, fix)
	}

	for _, diff := range verify.OrderDiffs {
		fix := Fix{
			Kind:     diff.Kind,
			EntityID: diff.OrderID,
			Detail:   fmt.Sprintf("status %s -> %s", diff.ActualStatus, diff.ExpectedStatus),
		}
		if diff.Kind == DiffMissingOrder {
			// The ledger records lifecycle, not line items; a vanished order
			// row cannot be reconstructed here. Surface it for the operator.
			report.Failures = append(report.Failures, Failure{
				EntityID: diff.OrderID,
				Reason:   "order row missing; cannot be rebuilt from lifecycle events",
			})
			continue
		}
		if dryRun {
			report.Fixes = append(report.Fixes, fix)
			continue
		}
		if err := s.withRetry(ctx, func() error {
			return s.writeOrderStatus(ctx, diff.OrderID, diff.ExpectedStatus)
		}); err != nil {
			report.Failures = append(report.Failures, Failure{EntityID: diff.OrderID, Reason: err.Error()})
			continue
		}
		fix.Applied = true
		report.Fixes = append(report.Fixes, fix)
	}

	return report, nil
}

// ColdStartRebuild replays the whole ledger and rewrites every materialized
// row from the result. Disaster recovery only: the confirmation literal must
// be typed verbatim.
func (s *Service) ColdStartRebuild(ctx context.Context, confirmation string) (*RebuildReport, error) {
	if confirmation != RebuildConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("rebuild requires confirmation %q", RebuildConfirmation))
	}

	events, err := s.ledgerRepo.ListAll(ctx, ledger.Filter{})
	if err != nil {
		return nil, err
	}
	state := replay.Replay(events)

	report := &RebuildReport{EventsReplayed: len(events)}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalogRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		for variantID, expected := range state.Inventory {
			if err := saveInventory(ctx, tx, variantID, expected.OnHand, expected.Reserved); err != nil {
				return err
			}
			report.InventoriesWritten++
		}

		// Rows with no ledger history hold stock the ledger never saw;
		// ground truth says they are empty.
		existing, err := catalogRepo.ListInventories(ctx)
		if err != nil {
			return err
		}
		for _, inv := range existing {
			if _, tracked := state.Inventory[inv.VariantID]; tracked {
				continue
			}
			if inv.OnHand == 0 && inv.Reserved == 0 {
				continue
			}
			if err := saveInventory(ctx, tx, inv.VariantID, 0, 0); err != nil {
				return err
			}
			report.InventoriesZeroed++
		}

		for orderID, expected := range state.Orders {
			order, err := ordersRepo.FindByID(ctx, orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// A vanished row is recreated from the CREATED payload.
					// Line items are not in the lifecycle events, so the
					// rebuilt row carries the total and status only.
					if _, err := ordersRepo.Create(ctx, &models.Order{
						ID:             orderID,
						UserID:         expected.UserID,
						PaymentStatus:  expected.Status,
						AmountPaise:    expected.AmountPaise,
						GatewayOrderID: expected.GatewayOrderID,
					}); err != nil {
						return err
					}
					report.OrdersCreated++
					continue
				}
				return err
			}
			if order.PaymentStatus == expected.Status {
				continue
			}
			if err := tx.WithContext(ctx).
				Model(&models.Order{}).
				Where("id = ?", orderID).
				Update("payment_status", expected.Status).
				Error; err != nil {
				return err
			}
			report.OrdersWritten++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		ctx = s.log.WithFields(ctx, map[string]any{
			"events_replayed":     report.EventsReplayed,
			"inventories_written": report.InventoriesWritten,
			"orders_written":      report.OrdersWritten,
			"orders_created":      report.OrdersCreated,
		})
		s.log.Info(ctx, "cold start rebuild complete")
	}
	return report, nil
}

func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		if s.log != nil {
			s.log.Warn(ctx, fmt.Sprintf("heal write failed, retrying once: %v", err))
		}
		return fn()
	}
	return nil
}

func (s *Service) writeInventory(ctx context.Context, variantID uuid.UUID, onHand, reserved int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return saveInventory(ctx, tx, variantID, onHand, reserved)
	})
}

func (s *Service) writeOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("payment_status", status).
			Error
	})
}

func saveInventory(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, onHand, reserved int) error {
	inv := models.Inventory{VariantID: variantID, OnHand: onHand, Reserved: reserved}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"on_hand", "reserved", "updated_at"}),
		}).
		Create(&inv).
		Error
}
