package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Shipment tracks fulfillment of an order's hardcopy items. At most one
// shipment exists per order.
type Shipment struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_shipments_order"`
	Status    enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
