package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/db"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

type sweepFixture struct {
	job  Job
	conn *gorm.DB
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	dsn := "file:sweep_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Variant{},
		&models.Inventory{},
		&models.Order{},
		&models.OrderItem{},
		&models.LedgerEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	job, err := NewPendingOrderSweepJob(PendingOrderSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "sweep-test"}),
		DB:         db.NewFromGorm(conn),
		OrdersRepo: orders.NewRepository(conn),
		Ledger:     ledger.NewService(ledger.NewRepository(conn)),
		PendingTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return &sweepFixture{job: job, conn: conn}
}

func (f *sweepFixture) seedOrder(t *testing.T, status enums.PaymentStatus, age time.Duration, items []models.OrderItem) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		PaymentStatus:  status,
		Currency:       "INR",
		GatewayOrderID: "order_rzp_" + uuid.NewString()[:8],
		Items:          items,
		CreatedAt:      time.Now().UTC().Add(-age),
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		order.AmountPaise += order.Items[i].UnitPricePaise * int64(order.Items[i].Qty)
		if order.Items[i].Format.IsPhysical() {
			inv := models.Inventory{
				VariantID: order.Items[i].VariantID,
				OnHand:    order.Items[i].Qty + 3,
				Reserved:  order.Items[i].Qty,
			}
			if err := f.conn.Create(&inv).Error; err != nil {
				t.Fatalf("seed inventory: %v", err)
			}
		}
	}
	if err := f.conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestSweepReleasesStaleReservations(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t)
	ctx := context.Background()
	variantID := uuid.New()
	order := f.seedOrder(t, enums.PaymentStatusPending, time.Hour, []models.OrderItem{
		{VariantID: variantID, BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 2, UnitPricePaise: 49900},
		{VariantID: uuid.New(), BookID: uuid.New(), Format: enums.BookFormatEbook, Qty: 1, UnitPricePaise: 19900},
	})

	if err := f.job.Run(ctx); err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.PaymentStatus)
	}

	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.OnHand != 5 || inv.Reserved != 0 {
		t.Fatalf("expected on_hand 5 reserved 0, got %d/%d", inv.OnHand, inv.Reserved)
	}

	var released models.LedgerEvent
	err := f.conn.First(&released, "entity_type = ? AND event_type = ?",
		enums.LedgerEntityInventory, enums.LedgerEventReleased).Error
	if err != nil {
		t.Fatalf("load released event: %v", err)
	}
	var payload ledger.StockPayload
	if err := json.Unmarshal(released.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Reason != ledger.ReleaseReasonCheckoutExpired {
		t.Fatalf("expected reason %s, got %s", ledger.ReleaseReasonCheckoutExpired, payload.Reason)
	}
	if payload.OrderID == nil || *payload.OrderID != order.ID {
		t.Fatal("released payload missing order id")
	}
	if released.ActorType != enums.LedgerActorSystem {
		t.Fatalf("expected SYSTEM actor, got %s", released.ActorType)
	}

	var failed models.LedgerEvent
	err = f.conn.First(&failed, "entity_type = ? AND event_type = ?",
		enums.LedgerEntityOrder, enums.LedgerEventFailed).Error
	if err != nil {
		t.Fatalf("load failed event: %v", err)
	}
	if failed.EntityID != order.ID {
		t.Fatalf("failed event entity mismatch: %s", failed.EntityID)
	}
}

func TestSweepLeavesFreshOrders(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t)
	variantID := uuid.New()
	order := f.seedOrder(t, enums.PaymentStatusPending, time.Minute, []models.OrderItem{
		{VariantID: variantID, BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 1, UnitPricePaise: 49900},
	})

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("fresh order should stay PENDING, got %s", stored.PaymentStatus)
	}
	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.Reserved != 1 {
		t.Fatalf("reservation should be intact, got %d", inv.Reserved)
	}
}

func TestSweepIgnoresSettledOrders(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t)
	order := f.seedOrder(t, enums.PaymentStatusPaid, time.Hour, []models.OrderItem{
		{VariantID: uuid.New(), BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 1, UnitPricePaise: 49900},
	})

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("settled order mutated, got %s", stored.PaymentStatus)
	}
	var events int64
	if err := f.conn.Model(&models.LedgerEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 0 {
		t.Fatalf("expected no ledger events, got %d", events)
	}
}

func TestSweepFailsDigitalOnlyOrderWithoutReleases(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t)
	order := f.seedOrder(t, enums.PaymentStatusPending, time.Hour, []models.OrderItem{
		{VariantID: uuid.New(), BookID: uuid.New(), Format: enums.BookFormatEbook, Qty: 1, UnitPricePaise: 19900},
	})

	if err := f.job.Run(context.Background()); err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.PaymentStatus)
	}
	var releases int64
	err := f.conn.Model(&models.LedgerEvent{}).
		Where("event_type = ?", enums.LedgerEventReleased).
		Count(&releases).Error
	if err != nil {
		t.Fatalf("count releases: %v", err)
	}
	if releases != 0 {
		t.Fatalf("digital order should not release stock, got %d events", releases)
	}
}
