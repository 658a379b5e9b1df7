package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Repository wires together order, payment and shipment persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads the order with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByGatewayOrderID resolves the order a webhook delivery refers to.
func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "gateway_order_id = ?", gatewayOrderID).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns a user's orders newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// ListAll returns every order with items, used by reconciliation scans.
func (r *Repository) ListAll(ctx context.Context) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at ASC").
		Find(&rows).
		Error
	return rows, err
}

// FindPendingBefore returns PENDING orders created at or before the cutoff,
// oldest first. The sweep releases their reservations in batches.
func (r *Repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	err := query.Find(&rows).Error
	return rows, err
}

// UpdatePaymentStatus flips the order status only when it still holds the
// expected value, returning false when another writer got there first.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Update("payment_status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetGatewayPaymentID records the captured payment reference on the order.
func (r *Repository) SetGatewayPaymentID(ctx context.Context, orderID uuid.UUID, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("gateway_payment_id", paymentID).
		Error
}

// CreatePayment inserts the business payment record. A duplicate (provider,
// provider_ref) insert is a no-op: two deliveries for the same logical
// payment must not fail the second one. ON CONFLICT keeps the surrounding
// transaction healthy, a raised unique violation would abort it on Postgres.
func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_ref"}},
			DoNothing: true,
		}).
		Create(payment).
		Error
}

// UpdatePaymentsStatusByOrder flips every payment row on the order to the
// given status. Used by refunds.
func (r *Repository) UpdatePaymentsStatusByOrder(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Update("status", status).
		Error
}

// CreateShipmentIfAbsent provisions the order's shipment exactly once,
// reporting whether a new row was created.
func (r *Repository) CreateShipmentIfAbsent(ctx context.Context, orderID uuid.UUID) (*models.Shipment, bool, error) {
	shipment := &models.Shipment{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  enums.ShipmentStatusPending,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(shipment)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.FindShipmentByOrder(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return shipment, true, nil
}

// FindShipmentByOrder loads the shipment for an order, if any.
func (r *Repository) FindShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}
