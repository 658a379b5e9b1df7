package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// LibraryEntry grants a user digital access to a book in one format. The
// (user_id, book_id, format) unique index makes grant and revoke idempotent.
type LibraryEntry struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_library_entries_user_book_format,priority:1"`
	BookID    uuid.UUID        `gorm:"column:book_id;type:uuid;not null;uniqueIndex:ux_library_entries_user_book_format,priority:2"`
	Format    enums.BookFormat `gorm:"column:format;type:text;not null;uniqueIndex:ux_library_entries_user_book_format,priority:3"`
	OrderID   *uuid.UUID       `gorm:"column:order_id;type:uuid"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}
