package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/middleware"
	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

type libraryLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LibraryEntry, error)
}

// LibraryList returns the digital titles the authenticated reader owns.
func LibraryList(repo libraryLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "library repository unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		entries, err := repo.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]libraryEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, libraryEntryResponse{
				BookID:    entry.BookID,
				Format:    entry.Format.String(),
				OrderID:   entry.OrderID,
				GrantedAt: entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"entries": out})
	}
}

type libraryEntryResponse struct {
	BookID    uuid.UUID  `json:"book_id"`
	Format    string     `json:"format"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
}
