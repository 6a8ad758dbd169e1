package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// Transaction is a completed point-of-sale sale. MpesaCode carries the
// gateway receipt once the sale is reconciled against a confirmed payment.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionNumber int64                   `gorm:"column:transaction_number;not null;uniqueIndex"`
	CreatedBy         uuid.UUID               `gorm:"column:created_by;type:uuid;not null"`
	ShiftID           uuid.UUID               `gorm:"column:shift_id;type:uuid;not null"`
	TotalAmount       decimal.Decimal         `gorm:"column:total_amount;type:numeric(10,2);not null"`
	DiscountAmount    decimal.Decimal         `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	FinalAmount       decimal.Decimal         `gorm:"column:final_amount;type:numeric(10,2);not null"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null"`
	MpesaCode         *string                 `gorm:"column:mpesa_code;type:varchar(50)"`
	Status            enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'completed'"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
