package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// Repository manages persistence for audit log entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
	CountByAction(ctx context.Context, action enums.AuditAction) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountByAction(ctx context.Context, action enums.AuditAction) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("action = ?", action).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
