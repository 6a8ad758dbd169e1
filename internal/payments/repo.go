package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/pagination"
)

// Repository handles the gateway payment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.MpesaPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MpesaPayment, error)
	FindByReceipt(ctx context.Context, receipt string) (*models.MpesaPayment, error)
	List(ctx context.Context, params ListQuery) ([]models.MpesaPayment, *pagination.Cursor, error)
	ListUnmatched(ctx context.Context, from, to time.Time) ([]models.MpesaPayment, error)
	MarkMatched(ctx context.Context, id uuid.UUID, match MatchUpdate) (bool, error)
	UnmatchedStats(ctx context.Context) (int64, decimal.Decimal, error)
}

// ListQuery configures inbox list queries.
type ListQuery struct {
	Limit     int
	Cursor    *pagination.Cursor
	IsMatched *bool
	DateFrom  *time.Time
	DateTo    *time.Time
}

// MatchUpdate carries the linkage written when a payment is matched to a
// transaction. MatchedBy is nil for automatic matches.
type MatchUpdate struct {
	TransactionID uuid.UUID
	IntentID      *uuid.UUID
	MatchedBy     *uuid.UUID
	MatchedAt     time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.MpesaPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MpesaPayment, error) {
	var payment models.MpesaPayment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByReceipt(ctx context.Context, receipt string) (*models.MpesaPayment, error) {
	if receipt == "" {
		return nil, nil
	}
	var payment models.MpesaPayment
	if err := r.db.WithContext(ctx).
		Where("receipt_number = ?", receipt).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.MpesaPayment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.MpesaPayment{})
	if params.IsMatched != nil {
		query = query.Where("is_matched = ?", *params.IsMatched)
	}
	if params.DateFrom != nil {
		query = query.Where("transaction_date >= ?", *params.DateFrom)
	}
	if params.DateTo != nil {
		query = query.Where("transaction_date <= ?", *params.DateTo)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var items []models.MpesaPayment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&items).Error; err != nil {
		return nil, nil, err
	}

	if len(items) > limit {
		next := items[limit]
		items = items[:limit]
		return items, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return items, nil, nil
}

func (r *repository) ListUnmatched(ctx context.Context, from, to time.Time) ([]models.MpesaPayment, error) {
	var items []models.MpesaPayment
	if err := r.db.WithContext(ctx).
		Where("is_matched = ?", false).
		Where("transaction_date BETWEEN ? AND ?", from, to).
		Order("transaction_date DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkMatched flips an unmatched payment to matched. The is_matched guard in
// the WHERE clause arbitrates concurrent match attempts; the caller learns
// whether it won via the returned bool.
func (r *repository) MarkMatched(ctx context.Context, id uuid.UUID, match MatchUpdate) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MpesaPayment{}).
		Where("id = ? AND is_matched = ?", id, false).
		Updates(map[string]any{
			"is_matched":             true,
			"matched_transaction_id": match.TransactionID,
			"matched_intent_id":      match.IntentID,
			"matched_by":             match.MatchedBy,
			"matched_at":             match.MatchedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UnmatchedStats(ctx context.Context) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MpesaPayment{}).
		Select("COUNT(id) AS count, SUM(amount) AS total").
		Where("is_matched = ?", false).
		Scan(&row).Error; err != nil {
		return 0, decimal.Zero, err
	}
	total := decimal.Zero
	if row.Total.Valid {
		total = row.Total.Decimal
	}
	return row.Count, total, nil
}
