package models

import "time"

// GatewayEvent records one processed webhook delivery. The (provider,
// event_id) unique index is the gateway-level idempotency gate: the row is
// written once, before any business processing, and never updated.
type GatewayEvent struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Provider  string    `gorm:"column:provider;type:text;not null;uniqueIndex:ux_gateway_events_provider_event,priority:1"`
	EventID   string    `gorm:"column:event_id;type:text;not null;uniqueIndex:ux_gateway_events_provider_event,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
