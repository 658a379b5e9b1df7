package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/pagination"
)

// repository narrows the persistence surface the service needs.
type repository interface {
	Append(ctx context.Context, tx *gorm.DB, event *models.LedgerEvent) error
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.LedgerEvent, string, error)
	ListAll(ctx context.Context, filter Filter) ([]models.LedgerEvent, error)
}

// Service records and reads ledger events.
type Service struct {
	repo repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// RecordEventInput captures the immutable data a ledger event requires.
// Payload is marshaled to JSON as-is.
type RecordEventInput struct {
	EntityType enums.LedgerEntityType
	EntityID   uuid.UUID
	EventType  enums.LedgerEventType
	ActorType  enums.LedgerActorType
	ActorID    *uuid.UUID
	Payload    any
}

// RecordEvent validates the input and appends the event inside the caller's
// transaction.
func (s *Service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordEventInput) error {
	if !input.EntityType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid ledger entity type %q", input.EntityType))
	}
	if input.EntityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entity id is required")
	}
	if input.EventType == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	if !input.ActorType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid ledger actor type %q", input.ActorType))
	}

	var payload json.RawMessage
	if input.Payload != nil {
		raw, err := json.Marshal(input.Payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal event payload")
		}
		payload = raw
	}

	event := &models.LedgerEvent{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		EventType:  input.EventType,
		ActorType:  input.ActorType,
		ActorID:    input.ActorID,
		Payload:    payload,
	}
	return s.repo.Append(ctx, tx, event)
}

// ListEvents returns one page of the filtered ledger plus the next cursor.
func (s *Service) ListEvents(ctx context.Context, filter Filter, params pagination.Params) ([]models.LedgerEvent, string, error) {
	return s.repo.List(ctx, filter, params)
}
