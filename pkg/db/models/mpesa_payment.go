package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MpesaPayment is the ledger of money confirmed by the gateway. One row per
// receipt number, whether or not it ever matches a POS transaction.
type MpesaPayment struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	ReceiptNumber   string          `gorm:"column:receipt_number;type:varchar(50);not null;uniqueIndex"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	PhoneNumber     string          `gorm:"column:phone_number;type:varchar(15);not null"`
	TransactionDate time.Time       `gorm:"column:transaction_date;not null;index"`
	SenderName      *string         `gorm:"column:sender_name;type:varchar(200)"`

	IsMatched            bool       `gorm:"column:is_matched;not null;default:false;index"`
	MatchedTransactionID *uuid.UUID `gorm:"column:matched_transaction_id;type:uuid;index"`
	MatchedIntentID      *uuid.UUID `gorm:"column:matched_intent_id;type:uuid"`
	MatchedAt            *time.Time `gorm:"column:matched_at"`
	MatchedBy            *uuid.UUID `gorm:"column:matched_by;type:uuid"`

	RawCallbackData json.RawMessage `gorm:"column:raw_callback_data;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
