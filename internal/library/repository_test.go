package library

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := "file:library_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.LibraryEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(conn)
}

func TestGrantIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	bookID := uuid.New()
	orderID := uuid.New()

	created, err := repo.Grant(ctx, &models.LibraryEntry{
		UserID:  userID,
		BookID:  bookID,
		Format:  enums.BookFormatEbook,
		OrderID: &orderID,
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !created {
		t.Fatal("first grant should create a row")
	}

	created, err = repo.Grant(ctx, &models.LibraryEntry{
		UserID:  userID,
		BookID:  bookID,
		Format:  enums.BookFormatEbook,
		OrderID: &orderID,
	})
	if err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	if created {
		t.Fatal("repeat grant must not create a second row")
	}

	entries, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestGrantAllowsSameBookInAnotherFormat(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	bookID := uuid.New()

	for _, format := range []enums.BookFormat{enums.BookFormatEbook, enums.BookFormatAudiobook} {
		created, err := repo.Grant(ctx, &models.LibraryEntry{UserID: userID, BookID: bookID, Format: format})
		if err != nil {
			t.Fatalf("grant %s: %v", format, err)
		}
		if !created {
			t.Fatalf("grant %s should create a row", format)
		}
	}

	has, err := repo.Has(ctx, userID, bookID, enums.BookFormatAudiobook)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatal("audiobook grant missing")
	}
}

func TestRevokeByOrderRemovesOnlyThatOrder(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	refunded := uuid.New()
	kept := uuid.New()

	if _, err := repo.Grant(ctx, &models.LibraryEntry{UserID: userID, BookID: uuid.New(), Format: enums.BookFormatEbook, OrderID: &refunded}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := repo.Grant(ctx, &models.LibraryEntry{UserID: userID, BookID: uuid.New(), Format: enums.BookFormatEbook, OrderID: &kept}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	revoked, err := repo.RevokeByOrder(ctx, refunded)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(revoked) != 1 {
		t.Fatalf("revoked = %d, want 1", len(revoked))
	}

	entries, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].OrderID == nil || *entries[0].OrderID != kept {
		t.Fatalf("unexpected remaining entries %+v", entries)
	}
}

func TestRevokeByOrderWithNoGrants(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	revoked, err := repo.RevokeByOrder(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked != nil {
		t.Fatalf("revoked = %v, want nil", revoked)
	}
}
