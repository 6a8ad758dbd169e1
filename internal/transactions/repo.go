package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// Repository handles POS transaction persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	SetMpesaCode(ctx context.Context, id uuid.UUID, receipt string) error
	FindCandidates(ctx context.Context, params CandidateQuery) ([]models.Transaction, error)
	SumCompletedMpesa(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)
}

// CandidateQuery bounds the search for transactions that could explain an
// unmatched gateway payment. Only completed mpesa sales without a receipt
// attached are considered.
type CandidateQuery struct {
	AmountMin decimal.Decimal
	AmountMax decimal.Decimal
	From      time.Time
	To        time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) SetMpesaCode(ctx context.Context, id uuid.UUID, receipt string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"mpesa_code":     receipt,
			"payment_method": enums.PaymentMethodMpesa,
		}).Error
}

func (r *repository) FindCandidates(ctx context.Context, params CandidateQuery) ([]models.Transaction, error) {
	var candidates []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("payment_method = ?", enums.PaymentMethodMpesa).
		Where("status = ?", enums.TransactionStatusCompleted).
		Where("mpesa_code IS NULL").
		Where("final_amount BETWEEN ? AND ?", params.AmountMin, params.AmountMax).
		Where("created_at BETWEEN ? AND ?", params.From, params.To).
		Order("created_at DESC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *repository) SumCompletedMpesa(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COUNT(id) AS count, SUM(final_amount) AS total").
		Where("payment_method = ?", enums.PaymentMethodMpesa).
		Where("status = ?", enums.TransactionStatusCompleted).
		Where("created_at BETWEEN ? AND ?", from, to).
		Scan(&row).Error; err != nil {
		return 0, decimal.Zero, err
	}
	total := decimal.Zero
	if row.Total.Valid {
		total = row.Total.Decimal
	}
	return row.Count, total, nil
}
