package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	"github.com/perennis1/studio-perennis-backend/pkg/pagination"
)

// Filter narrows a ledger scan. Zero values mean "no constraint".
type Filter struct {
	EntityType enums.LedgerEntityType
	EntityID   *uuid.UUID
	EventType  enums.LedgerEventType
	From       *time.Time
	To         *time.Time
}

// Repository manages persistence for ledger events. The ledger is
// append-only: no update or delete methods exist, and Append refuses to run
// outside a transaction so an event can never be recorded separately from
// the business mutation it documents.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, tx *gorm.DB, event *models.LedgerEvent) error {
	if tx == nil {
		return fmt.Errorf("ledger append requires an open transaction")
	}
	return tx.WithContext(ctx).Create(event).Error
}

// List returns one page of events in ascending (created_at, id) order plus
// the cursor for the next page, or "" when the page is the last one.
func (r *Repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.LedgerEvent, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := applyFilter(r.db.WithContext(ctx), filter)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var events []models.LedgerEvent
	err = query.
		Order("created_at ASC, id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&events).Error
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return events, nextCursor, nil
}

// ListAll streams the full filtered ledger in pages. Reconciliation uses it
// to replay history without loading unboundedly in one query.
func (r *Repository) ListAll(ctx context.Context, filter Filter) ([]models.LedgerEvent, error) {
	var all []models.LedgerEvent
	params := pagination.Params{Limit: pagination.MaxLimit}
	for {
		page, next, err := r.List(ctx, filter, params)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		params.Cursor = next
	}
}

func applyFilter(query *gorm.DB, filter Filter) *gorm.DB {
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}
