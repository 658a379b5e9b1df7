package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Payment is the business-level record of a gateway payment. The (provider,
// provider_ref) unique index deduplicates distinct webhook deliveries that
// reference the same logical payment.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider    string              `gorm:"column:provider;type:text;not null;uniqueIndex:ux_payments_provider_ref,priority:1"`
	ProviderRef string              `gorm:"column:provider_ref;type:text;not null;uniqueIndex:ux_payments_provider_ref,priority:2"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	AmountPaise int64               `gorm:"column:amount_paise;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
