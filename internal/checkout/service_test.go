package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/internal/catalog"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/internal/orders"
	"github.com/perennis1/studio-perennis-backend/pkg/config"
	"github.com/perennis1/studio-perennis-backend/pkg/db"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	apperrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/razorpay"
)

type fakeGateway struct {
	orders []razorpay.CreateOrderInput
	err    error
}

func (f *fakeGateway) CreateOrder(_ context.Context, input razorpay.CreateOrderInput) (*razorpay.GatewayOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.orders = append(f.orders, input)
	return &razorpay.GatewayOrder{
		ID:          "order_rzp_" + uuid.NewString()[:8],
		AmountPaise: input.AmountPaise,
		Currency:    "INR",
		Receipt:     input.Receipt,
	}, nil
}

type checkoutFixture struct {
	svc     Service
	conn    *gorm.DB
	gateway *fakeGateway
}

func newFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
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

	gateway := &fakeGateway{}
	svc, err := NewService(
		db.NewFromGorm(conn),
		orders.NewRepository(conn),
		catalog.NewRepository(conn),
		gateway,
		ledger.NewService(ledger.NewRepository(conn)),
		config.CheckoutConfig{Currency: "INR"},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &checkoutFixture{svc: svc, conn: conn, gateway: gateway}
}

func (f *checkoutFixture) seedVariant(t *testing.T, format enums.BookFormat, pricePaise int64, onHand int) models.Variant {
	t.Helper()
	variant := models.Variant{
		ID:         uuid.New(),
		BookID:     uuid.New(),
		Format:     format,
		PricePaise: pricePaise,
		Active:     true,
	}
	if err := f.conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if format.IsPhysical() {
		if err := f.conn.Create(&models.Inventory{VariantID: variant.ID, OnHand: onHand}).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}
	return variant
}

func TestExecuteMixedBasket(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	hardcopy := f.seedVariant(t, enums.BookFormatHardcopy, 49900, 10)
	ebook := f.seedVariant(t, enums.BookFormatEbook, 19900, 0)

	result, err := f.svc.Execute(ctx, userID, CheckoutInput{Items: []CheckoutItem{
		{VariantID: hardcopy.ID, Qty: 2},
		{VariantID: ebook.ID, Qty: 1},
	}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.AmountPaise != 2*49900+19900 {
		t.Fatalf("unexpected total: %d", result.AmountPaise)
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending order, got %s", result.Order.PaymentStatus)
	}
	if result.GatewayOrderID == "" || result.Order.GatewayOrderID != result.GatewayOrderID {
		t.Fatalf("gateway order id not persisted: %+v", result)
	}

	// Digital formats never hold stock.
	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", hardcopy.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.Reserved != 2 || inv.OnHand != 10 {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	var ebookRows int64
	if err := f.conn.Model(&models.Inventory{}).Where("variant_id = ?", ebook.ID).Count(&ebookRows).Error; err != nil {
		t.Fatalf("count ebook inventory: %v", err)
	}
	if ebookRows != 0 {
		t.Fatalf("ebook must not hold stock, found %d inventory rows", ebookRows)
	}

	var events []models.LedgerEvent
	if err := f.conn.Order("id ASC").Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected RESERVED + CREATED events, got %d", len(events))
	}
	if events[0].EventType != enums.LedgerEventReserved || events[0].EntityID != hardcopy.ID {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != enums.LedgerEventCreated || events[1].EntityID != result.Order.ID {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestExecuteOutOfStockRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	plenty := f.seedVariant(t, enums.BookFormatHardcopy, 10000, 10)
	scarce := f.seedVariant(t, enums.BookFormatHardcopy, 10000, 1)

	_, err := f.svc.Execute(ctx, uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: plenty.ID, Qty: 2},
		{VariantID: scarce.ID, Qty: 3},
	}})
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	// The whole checkout rolls back, including the sibling reservation.
	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", plenty.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.Reserved != 0 {
		t.Fatalf("sibling reservation not rolled back: %+v", inv)
	}
	var orderCount, eventCount int64
	f.conn.Model(&models.Order{}).Count(&orderCount)
	f.conn.Model(&models.LedgerEvent{}).Count(&eventCount)
	if orderCount != 0 || eventCount != 0 {
		t.Fatalf("expected no orders or events, got %d/%d", orderCount, eventCount)
	}
}

func TestExecuteGatewayFailureRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gateway.err = errors.New("gateway timeout")
	variant := f.seedVariant(t, enums.BookFormatHardcopy, 10000, 5)

	_, err := f.svc.Execute(context.Background(), uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: variant.ID, Qty: 1},
	}})
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	var inv models.Inventory
	if err := f.conn.First(&inv, "variant_id = ?", variant.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.Reserved != 0 {
		t.Fatalf("reservation not rolled back: %+v", inv)
	}
}

func TestExecuteGatewayDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc, err := NewService(
		db.NewFromGorm(f.conn),
		orders.NewRepository(f.conn),
		catalog.NewRepository(f.conn),
		nil,
		ledger.NewService(ledger.NewRepository(f.conn)),
		config.CheckoutConfig{Currency: "INR"},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	variant := f.seedVariant(t, enums.BookFormatHardcopy, 10000, 5)

	_, err = svc.Execute(context.Background(), uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: variant.ID, Qty: 1},
	}})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestExecuteUnknownAndInactiveVariants(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: uuid.New(), Qty: 1},
	}})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	inactive := f.seedVariant(t, enums.BookFormatHardcopy, 10000, 5)
	if err := f.conn.Model(&models.Variant{}).Where("id = ?", inactive.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = f.svc.Execute(ctx, uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: inactive.ID, Qty: 1},
	}})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteMergesDuplicateLines(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	variant := f.seedVariant(t, enums.BookFormatHardcopy, 5000, 10)

	result, err := f.svc.Execute(context.Background(), uuid.New(), CheckoutInput{Items: []CheckoutItem{
		{VariantID: variant.ID, Qty: 1},
		{VariantID: variant.ID, Qty: 2},
	}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Order.Items) != 1 || result.Order.Items[0].Qty != 3 {
		t.Fatalf("expected merged line of 3, got %+v", result.Order.Items)
	}
	if result.AmountPaise != 3*5000 {
		t.Fatalf("unexpected total: %d", result.AmountPaise)
	}
}

func TestExecuteValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, uuid.Nil, CheckoutInput{Items: []CheckoutItem{{VariantID: uuid.New(), Qty: 1}}})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error for nil user, got %v", err)
	}

	_, err = f.svc.Execute(ctx, uuid.New(), CheckoutInput{})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error for empty basket, got %v", err)
	}

	_, err = f.svc.Execute(ctx, uuid.New(), CheckoutInput{Items: []CheckoutItem{{VariantID: uuid.New(), Qty: 0}}})
	if appErr := apperrors.As(err); appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}
}
