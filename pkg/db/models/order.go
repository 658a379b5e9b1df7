package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Order is the materialized record of a checkout. PaymentStatus advances
// PENDING -> PAID or FAILED through the webhook processor and PAID ->
// REFUNDED through an explicit admin action only.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'PENDING';index"`
	AmountPaise      int64               `gorm:"column:amount_paise;not null"`
	Currency         string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;type:text;not null;uniqueIndex:ux_orders_gateway_order"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;type:text"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one purchased variant within an order.
type OrderItem struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID        `gorm:"column:variant_id;type:uuid;not null"`
	BookID         uuid.UUID        `gorm:"column:book_id;type:uuid;not null"`
	Format         enums.BookFormat `gorm:"column:format;type:text;not null"`
	Qty            int              `gorm:"column:qty;not null"`
	UnitPricePaise int64            `gorm:"column:unit_price_paise;not null"`
}
