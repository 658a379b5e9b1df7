package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// LedgerEvent is one immutable row of the append-only domain event log.
// Rows are never updated or deleted; the monotonically increasing ID breaks
// ordering ties between events sharing a created_at timestamp.
type LedgerEvent struct {
	ID         uint64                 `gorm:"column:id;primaryKey;autoIncrement"`
	EntityType enums.LedgerEntityType `gorm:"column:entity_type;type:text;not null;index:idx_ledger_events_entity"`
	EntityID   uuid.UUID              `gorm:"column:entity_id;type:uuid;not null;index:idx_ledger_events_entity"`
	EventType  enums.LedgerEventType  `gorm:"column:event_type;type:text;not null"`
	ActorType  enums.LedgerActorType  `gorm:"column:actor_type;type:text;not null"`
	ActorID    *uuid.UUID             `gorm:"column:actor_id;type:uuid"`
	Payload    json.RawMessage        `gorm:"column:payload;type:jsonb"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime;index"`
}
