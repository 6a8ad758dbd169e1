package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// PaymentIntent tracks one STK push attempt against a POS transaction.
// CheckoutRequestID is the gateway handle a later callback is matched on.
type PaymentIntent struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(10,2);not null"`
	PhoneNumber   string             `gorm:"column:phone_number;type:varchar(15);not null"`
	Status        enums.IntentStatus `gorm:"column:status;type:intent_status;not null;default:'pending';index"`

	MerchantRequestID *string `gorm:"column:merchant_request_id;type:varchar(100)"`
	CheckoutRequestID *string `gorm:"column:checkout_request_id;type:varchar(100);uniqueIndex"`

	ReceiptNumber *string         `gorm:"column:receipt_number;type:varchar(50);index"`
	GatewayPaidAt *time.Time      `gorm:"column:gateway_paid_at"`
	CallbackData  json.RawMessage `gorm:"column:callback_data;type:jsonb"`
	FailureReason *string         `gorm:"column:failure_reason;type:varchar(500)"`

	CreatedBy   uuid.UUID  `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null;index"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
}

// IsExpired reports whether a pending intent has outlived its TTL.
func (p PaymentIntent) IsExpired(now time.Time) bool {
	return p.Status == enums.IntentStatusPending && now.After(p.ExpiresAt)
}
