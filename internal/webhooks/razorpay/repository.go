package razorpaywebhook

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
)

// EventRepository persists the gateway-level idempotency gate.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(conn *gorm.DB) *EventRepository {
	return &EventRepository{db: conn}
}

// WithTx returns a repository bound to the provided transaction.
func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

// InsertIfAbsent records the delivery once. Returns false when the
// (provider, event_id) pair was already processed.
func (r *EventRepository) InsertIfAbsent(ctx context.Context, provider, eventID string) (bool, error) {
	record := models.GatewayEvent{Provider: provider, EventID: eventID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
