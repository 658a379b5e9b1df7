package library

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Repository persists digital access grants. Grants are idempotent on the
// (user, book, format) unique index so webhook retries never double-grant.
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

// Grant inserts the access entry, reporting whether a new grant was created.
// Duplicate grants land on the unique index and do nothing, which keeps the
// surrounding webhook transaction healthy on Postgres.
func (r *Repository) Grant(ctx context.Context, entry *models.LibraryEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}, {Name: "format"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RevokeByOrder removes every grant attached to the order. Used by refunds.
func (r *Repository) RevokeByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LibraryEntry, error) {
	var entries []models.LibraryEntry
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.LibraryEntry{}).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByUser returns a user's library, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LibraryEntry, error) {
	var entries []models.LibraryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).
		Error
	return entries, err
}

// ListAll returns every grant, used by reconciliation scans.
func (r *Repository) ListAll(ctx context.Context) ([]models.LibraryEntry, error) {
	var entries []models.LibraryEntry
	err := r.db.WithContext(ctx).Find(&entries).Error
	return entries, err
}

// Has reports whether the user already holds the grant.
func (r *Repository) Has(ctx context.Context, userID, bookID uuid.UUID, format enums.BookFormat) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND book_id = ? AND format = ?", userID, bookID, format).
		Count(&count).
		Error
	return count > 0, err
}
