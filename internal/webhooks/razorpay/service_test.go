package razorpaywebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/library"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/db"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
)

type fixture struct {
	svc  *Service
	conn *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:webhook_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Variant{},
		&models.Inventory{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Shipment{},
		&models.LibraryEntry{},
		&models.GatewayEvent{},
		&models.LedgerEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(ServiceParams{
		TransactionRunner: db.NewFromGorm(conn),
		OrdersRepo:        orders.NewRepository(conn),
		LibraryRepo:       library.NewRepository(conn),
		EventsRepo:        NewEventRepository(conn),
		Ledger:            ledger.NewService(ledger.NewRepository(conn)),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, conn: conn}
}

// seedPendingOrder mirrors the state checkout leaves behind: a PENDING order
// whose physical items hold reservations.
func (f *fixture) seedPendingOrder(t *testing.T, items []models.OrderItem) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		PaymentStatus:  enums.PaymentStatusPending,
		Currency:       "INR",
		GatewayOrderID: "order_rzp_" + uuid.NewString()[:8],
		Items:          items,
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

func capturedEvent(order *models.Order) *WebhookEvent {
	return &WebhookEvent{
		ID:    "evt_" + uuid.NewString()[:8],
		Event: EventPaymentCaptured,
		Payload: WebhookPayload{Payment: WebhookPayment{Entity: PaymentEntity{
			ID:      "pay_" + uuid.NewString()[:8],
			OrderID: order.GatewayOrderID,
			Amount:  order.AmountPaise,
			Status:  "captured",
		}}},
	}
}

func failedEvent(order *models.Order) *WebhookEvent {
	event := capturedEvent(order)
	event.Event = EventPaymentFailed
	event.Payload.Payment.Entity.Status = "failed"
	return event
}

func TestProcessCaptureMixedOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	variantID := uuid.New()
	bookID := uuid.New()
	order := f.seedPendingOrder(t, []models.OrderItem{
		{VariantID: variantID, BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 2, UnitPricePaise: 49900},
		{VariantID: uuid.New(), BookID: bookID, Format: enums.BookFormatEbook, Qty: 1, UnitPricePaise: 19900},
	})

	result, err := f.svc.Process(ctx, capturedEvent(order))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", result.Outcome)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", stored.PaymentStatus)
	}
	if stored.GatewayPaymentID == nil || *stored.GatewayPaymentID == "" {
		t.Fatal("gateway payment id not recorded")
	}

	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.OnHand != 3 || inv.Reserved != 0 {
		t.Fatalf("stock not committed: %+v", inv)
	}

	var grants int64
	f.conn.Model(&models.LibraryEntry{}).Where("user_id = ? AND book_id = ?", order.UserID, bookID).Count(&grants)
	if grants != 1 {
		t.Fatalf("expected 1 library grant, got %d", grants)
	}

	var shipments int64
	f.conn.Model(&models.Shipment{}).Where("order_id = ?", order.ID).Count(&shipments)
	if shipments != 1 {
		t.Fatalf("expected 1 shipment, got %d", shipments)
	}

	var payments int64
	f.conn.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&payments)
	if payments != 1 {
		t.Fatalf("expected 1 payment, got %d", payments)
	}

	var types []string
	f.conn.Model(&models.LedgerEvent{}).Order("id ASC").Pluck("event_type", &types)
	counts := map[string]int{}
	for _, typ := range types {
		counts[typ]++
	}
	want := map[string]int{"COMMITTED": 1, "GRANTED": 1, "CREATED": 1, "PAID": 1}
	for typ, n := range want {
		if counts[typ] != n {
			t.Fatalf("expected events %v, got %v", want, types)
		}
	}
	if len(types) != 4 || types[len(types)-1] != "PAID" {
		t.Fatalf("expected PAID event last, got %v", types)
	}
}

func TestProcessDuplicateDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	variantID := uuid.New()
	order := f.seedPendingOrder(t, []models.OrderItem{
		{VariantID: variantID, BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 1, UnitPricePaise: 10000},
	})
	event := capturedEvent(order)

	if _, err := f.svc.Process(ctx, event); err != nil {
		t.Fatalf("first process: %v", err)
	}
	result, err := f.svc.Process(ctx, event)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}

	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.OnHand != 3 || inv.Reserved != 0 {
		t.Fatalf("stock double-committed: %+v", inv)
	}
}

func TestProcessBusinessLevelGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.seedPendingOrder(t, []models.OrderItem{
		{VariantID: uuid.New(), BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 1, UnitPricePaise: 10000},
	})

	if _, err := f.svc.Process(ctx, capturedEvent(order)); err != nil {
		t.Fatalf("first process: %v", err)
	}

	// A second logical delivery carries a fresh event id, so only the
	// business-level gate can stop it.
	result, err := f.svc.Process(ctx, capturedEvent(order))
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", result.Outcome)
	}
}

func TestProcessFailureReleasesReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	variantID := uuid.New()
	order := f.seedPendingOrder(t, []models.OrderItem{
		{VariantID: variantID, BookID: uuid.New(), Format: enums.BookFormatHardcopy, Qty: 2, UnitPricePaise: 10000},
	})

	result, err := f.svc.Process(ctx, failedEvent(order))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %s", result.Outcome)
	}

	var stored models.Order
	if err := f.conn.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.PaymentStatus)
	}

	// On-hand stays put, only the hold is released.
	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.OnHand != 5 || inv.Reserved != 0 {
		t.Fatalf("unexpected inventory: %+v", inv)
	}

	var released models.LedgerEvent
	if err := f.conn.First(&released, "event_type = ?", enums.LedgerEventReleased).Error; err != nil {
		t.Fatalf("load released event: %v", err)
	}
	var payload ledger.StockPayload
	if err := json.Unmarshal(released.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Reason != ledger.ReleaseReasonPaymentFailed {
		t.Fatalf("expected PAYMENT_FAILED reason, got %q", payload.Reason)
	}
}

func TestProcessUnknownOrderAcknowledged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	event := &WebhookEvent{
		ID:    "evt_unknown",
		Event: EventPaymentCaptured,
		Payload: WebhookPayload{Payment: WebhookPayment{Entity: PaymentEntity{
			ID:      "pay_x",
			OrderID: "order_rzp_missing",
			Amount:  100,
		}}},
	}
	result, err := f.svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", result.Outcome)
	}

	// The gate row sticks so retries short-circuit.
	var gates int64
	f.conn.Model(&models.GatewayEvent{}).Where("provider = ? AND event_id = ?", razorpay.Provider, "evt_unknown").Count(&gates)
	if gates != 1 {
		t.Fatalf("expected gate row, got %d", gates)
	}
}

func TestProcessUnhandledEventType(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	result, err := f.svc.Process(context.Background(), &WebhookEvent{
		ID:    "evt_refund",
		Event: "refund.processed",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", result.Outcome)
	}
}

type fakeIdempotencyStore struct {
	keys map[string]time.Time
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := f.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.keys == nil {
		f.keys = map[string]time.Time{}
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = time.Now()
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sp:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestProcessGuardShortCircuits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	guard, err := NewIdempotencyGuard(&fakeIdempotencyStore{}, time.Hour, "webhooks:razorpay")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	svc, err := NewService(ServiceParams{
		TransactionRunner: db.NewFromGorm(f.conn),
		OrdersRepo:        orders.NewRepository(f.conn),
		LibraryRepo:       library.NewRepository(f.conn),
		EventsRepo:        NewEventRepository(f.conn),
		Ledger:            ledger.NewService(ledger.NewRepository(f.conn)),
		Guard:             guard,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order := f.seedPendingOrder(t, []models.OrderItem{
		{VariantID: uuid.New(), BookID: uuid.New(), Format: enums.BookFormatEbook, Qty: 1, UnitPricePaise: 10000},
	})
	event := capturedEvent(order)

	if _, err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("first process: %v", err)
	}
	result, err := svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate via guard, got %s", result.Outcome)
	}
}
