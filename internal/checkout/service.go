package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/catalog"
	"github.com/perennis1/studio-perennis-backend/internal/checkout/reservation"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/config"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayOrderer interface {
	CreateOrder(ctx context.Context, input razorpay.CreateOrderInput) (*razorpay.GatewayOrder, error)
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordEventInput) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.InventoryReservationRequest) ([]reservation.InventoryReservationResult, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.InventoryReservationRequest) ([]reservation.InventoryReservationResult, error) {
	return reservation.ReserveInventory(ctx, tx, requests)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutItem is one requested line of a checkout.
type CheckoutItem struct {
	VariantID uuid.UUID
	Qty       int
}

// CheckoutInput captures the checkout request.
type CheckoutInput struct {
	Items []CheckoutItem
}

// CheckoutResult returns the persisted order plus the gateway handle the
// client completes payment against.
type CheckoutResult struct {
	Order          *models.Order
	GatewayOrderID string
	AmountPaise    int64
	Currency       string
}

type service struct {
	tx          txRunner
	ordersRepo  *orders.Repository
	catalogRepo *catalog.Repository
	gateway     gatewayOrderer
	ledger      ledgerRecorder
	reservation reservationRunner
	cfg         config.CheckoutConfig
}

// NewService builds the checkout service. A nil gateway means payments are
// disabled for the environment; checkout then rejects every request before
// touching stock.
func NewService(
	tx txRunner,
	ordersRepo *orders.Repository,
	catalogRepo *catalog.Repository,
	gateway gatewayOrderer,
	ledgerSvc ledgerRecorder,
	cfg config.CheckoutConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		tx:          tx,
		ordersRepo:  ordersRepo,
		catalogRepo: catalogRepo,
		gateway:     gateway,
		ledger:      ledgerSvc,
		reservation: reservationEngine{},
		cfg:         cfg,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}

	var result *CheckoutResult
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalogRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.VariantID)
		}
		variants, err := catalogRepo.ListVariantsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		variantsByID := make(map[uuid.UUID]models.Variant, len(variants))
		for _, v := range variants {
			variantsByID[v.ID] = v
		}
		for _, item := range items {
			variant, ok := variantsByID[item.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("variant %s not found", item.VariantID))
			}
			if !variant.Active {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("variant %s is not sellable", item.VariantID))
			}
		}

		requests := make([]reservation.InventoryReservationRequest, 0, len(items))
		for _, item := range items {
			if variantsByID[item.VariantID].Format.IsPhysical() {
				requests = append(requests, reservation.InventoryReservationRequest{
					VariantID: item.VariantID,
					Qty:       item.Qty,
				})
			}
		}
		reservations, err := s.reservation.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, res := range reservations {
			if !res.Reserved {
				return pkgerrors.New(pkgerrors.CodeOutOfStock,
					fmt.Sprintf("variant %s: %s", res.VariantID, res.Reason)).
					WithDetails(map[string]any{"variant_id": res.VariantID, "reason": res.Reason})
			}
		}

		var totalPaise int64
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			variant := variantsByID[item.VariantID]
			totalPaise += variant.PricePaise * int64(item.Qty)
			orderItems = append(orderItems, models.OrderItem{
				VariantID:      variant.ID,
				BookID:         variant.BookID,
				Format:         variant.Format,
				Qty:            item.Qty,
				UnitPricePaise: variant.PricePaise,
			})
		}

		orderID := uuid.New()
		gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderInput{
			AmountPaise: totalPaise,
			Currency:    s.cfg.Currency,
			Receipt:     orderID.String(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "opening gateway order")
		}

		order := &models.Order{
			ID:             orderID,
			UserID:         userID,
			PaymentStatus:  enums.PaymentStatusPending,
			AmountPaise:    totalPaise,
			Currency:       gatewayOrder.Currency,
			GatewayOrderID: gatewayOrder.ID,
			Items:          orderItems,
		}
		created, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		for _, res := range reservations {
			if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
				EntityType: enums.LedgerEntityInventory,
				EntityID:   res.VariantID,
				EventType:  enums.LedgerEventReserved,
				ActorType:  enums.LedgerActorUser,
				ActorID:    &userID,
				Payload:    ledger.StockPayload{Qty: res.Qty, OrderID: &created.ID},
			}); err != nil {
				return err
			}
		}
		if err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			EntityType: enums.LedgerEntityOrder,
			EntityID:   created.ID,
			EventType:  enums.LedgerEventCreated,
			ActorType:  enums.LedgerActorUser,
			ActorID:    &userID,
			Payload: ledger.OrderPayload{
				UserID:         userID,
				AmountPaise:    totalPaise,
				GatewayOrderID: gatewayOrder.ID,
			},
		}); err != nil {
			return err
		}

		result = &CheckoutResult{
			Order:          created,
			GatewayOrderID: gatewayOrder.ID,
			AmountPaise:    totalPaise,
			Currency:       gatewayOrder.Currency,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// mergeItems validates quantities and collapses duplicate variant lines.
func mergeItems(items []CheckoutItem) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout contains no items")
	}
	merged := make([]CheckoutItem, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid qty %d for variant %s", item.Qty, item.VariantID))
		}
		if pos, ok := index[item.VariantID]; ok {
			merged[pos].Qty += item.Qty
			continue
		}
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
