package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// AuditLog records an immutable payment lifecycle event. Every webhook
// decision and manual reconciliation action lands exactly one row here.
type AuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	Action     enums.AuditAction `gorm:"column:action;type:varchar(100);not null;index"`
	EntityType string            `gorm:"column:entity_type;type:varchar(50);not null"`
	EntityID   string            `gorm:"column:entity_id;type:varchar(255);not null"`
	OldValue   json.RawMessage   `gorm:"column:old_value;type:jsonb"`
	NewValue   json.RawMessage   `gorm:"column:new_value;type:jsonb"`
	IPAddress  *string           `gorm:"column:ip_address;type:varchar(45)"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
