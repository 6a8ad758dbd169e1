package intents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// Repository handles payment intent persistence. State transitions out of
// PENDING are guarded updates so concurrent writers settle at the database.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentIntent, error)
	FindActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.PaymentIntent, error)
	FindPendingByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.PaymentIntent, error)
	SetGatewayRefs(ctx context.Context, id uuid.UUID, merchantRequestID, checkoutRequestID string) error
	Confirm(ctx context.Context, id uuid.UUID, confirmation Confirmation) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, callbackData json.RawMessage) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ListStalePending(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error)
	SumConfirmed(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)
	ListByStatusCreated(ctx context.Context, status enums.IntentStatus, from, to time.Time) ([]models.PaymentIntent, error)
}

// Confirmation carries the callback fields written when an intent settles.
type Confirmation struct {
	ReceiptNumber string
	GatewayPaidAt time.Time
	ConfirmedAt   time.Time
	CallbackData  json.RawMessage
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentIntent, error) {
	if checkoutRequestID == "" {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Where("status IN (?)", []enums.IntentStatus{enums.IntentStatusPending, enums.IntentStatusConfirmed}).
		Order("created_at DESC").
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindPendingByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Where("status = ?", enums.IntentStatusPending).
		Order("created_at DESC").
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) SetGatewayRefs(ctx context.Context, id uuid.UUID, merchantRequestID, checkoutRequestID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"merchant_request_id": merchantRequestID,
			"checkout_request_id": checkoutRequestID,
		}).Error
}

// Confirm moves a pending intent to CONFIRMED. The status guard makes the
// transition idempotent under concurrent callbacks.
func (r *repository) Confirm(ctx context.Context, id uuid.UUID, confirmation Confirmation) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusPending).
		Updates(map[string]any{
			"status":          enums.IntentStatusConfirmed,
			"receipt_number":  confirmation.ReceiptNumber,
			"gateway_paid_at": confirmation.GatewayPaidAt,
			"confirmed_at":    confirmation.ConfirmedAt,
			"callback_data":   confirmation.CallbackData,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, callbackData json.RawMessage) (bool, error) {
	updates := map[string]any{
		"status":         enums.IntentStatusFailed,
		"failure_reason": reason,
	}
	if callbackData != nil {
		updates["callback_data"] = callbackData
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusPending).
		Update("status", enums.IntentStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListStalePending(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error) {
	if limit <= 0 {
		limit = 250
	}
	var intents []models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.IntentStatusPending).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) SumConfirmed(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Select("COUNT(id) AS count, SUM(amount) AS total").
		Where("status = ?", enums.IntentStatusConfirmed).
		Where("confirmed_at BETWEEN ? AND ?", from, to).
		Scan(&row).Error; err != nil {
		return 0, decimal.Zero, err
	}
	total := decimal.Zero
	if row.Total.Valid {
		total = row.Total.Decimal
	}
	return row.Count, total, nil
}

func (r *repository) ListByStatusCreated(ctx context.Context, status enums.IntentStatus, from, to time.Time) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where("created_at BETWEEN ? AND ?", from, to).
		Order("created_at DESC").
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}
