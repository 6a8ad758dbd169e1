package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// Service records append-only audit entries. Entries are written inside the
// surrounding transaction when one is supplied.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditLog, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data an audit entry requires.
type RecordInput struct {
	UserID     *uuid.UUID
	Action     enums.AuditAction
	EntityType string
	EntityID   string
	OldValue   json.RawMessage
	NewValue   json.RawMessage
	IPAddress  *string
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditLog, error) {
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", input.Action)
	}
	if input.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if input.EntityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	entry := &models.AuditLog{
		UserID:     input.UserID,
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		OldValue:   input.OldValue,
		NewValue:   input.NewValue,
		IPAddress:  input.IPAddress,
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("entity type and id are required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID)
}
