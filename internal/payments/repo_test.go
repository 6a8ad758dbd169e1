package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS mpesa_payments (
  id TEXT PRIMARY KEY,
  receipt_number TEXT NOT NULL UNIQUE,
  amount NUMERIC NOT NULL,
  phone_number TEXT NOT NULL,
  transaction_date DATETIME NOT NULL,
  sender_name TEXT,
  is_matched INTEGER NOT NULL DEFAULT 0,
  matched_transaction_id TEXT,
  matched_intent_id TEXT,
  matched_at DATETIME,
  matched_by TEXT,
  raw_callback_data TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedPayment(t *testing.T, db *gorm.DB, mutate func(*models.MpesaPayment)) *models.MpesaPayment {
	t.Helper()

	payment := &models.MpesaPayment{
		ID:              uuid.New(),
		ReceiptNumber:   "SFC" + uuid.NewString()[:10],
		Amount:          decimal.NewFromInt(500),
		PhoneNumber:     "254712345678",
		TransactionDate: time.Now().UTC(),
		CreatedAt:       time.Now().UTC(),
	}
	if mutate != nil {
		mutate(payment)
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestFindByReceipt(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedPayment(t, db, func(p *models.MpesaPayment) {
		p.ReceiptNumber = "SFC4H7K9L2M"
	})

	found, err := repo.FindByReceipt(ctx, "SFC4H7K9L2M")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, seeded.ID, found.ID)

	missing, err := repo.FindByReceipt(ctx, "SFC0000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindByReceipt(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestMarkMatchedGuardsOnUnmatched(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := seedPayment(t, db, nil)
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	won, err := repo.MarkMatched(ctx, payment.ID, MatchUpdate{
		TransactionID: first,
		MatchedBy:     &first,
		MatchedAt:     now,
	})
	require.NoError(t, err)
	assert.True(t, won)

	// A concurrent operator loses the guard.
	won, err = repo.MarkMatched(ctx, payment.ID, MatchUpdate{
		TransactionID: second,
		MatchedBy:     &second,
		MatchedAt:     now,
	})
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsMatched)
	require.NotNil(t, stored.MatchedTransactionID)
	assert.Equal(t, first, *stored.MatchedTransactionID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Hour
		matched := i%2 == 0
		seedPayment(t, db, func(p *models.MpesaPayment) {
			p.ReceiptNumber = fmt.Sprintf("SFCLIST%03d", i)
			p.TransactionDate = base.Add(offset)
			p.CreatedAt = base.Add(offset)
			p.IsMatched = matched
		})
	}

	unmatched := false
	items, _, err := repo.List(ctx, ListQuery{IsMatched: &unmatched})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.False(t, item.IsMatched)
	}

	from := base.Add(90 * time.Minute)
	to := base.Add(210 * time.Minute)
	items, _, err = repo.List(ctx, ListQuery{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Page through everything two at a time, newest first.
	page, cursor, err := repo.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, "SFCLIST004", page[0].ReceiptNumber)

	page, cursor, err = repo.List(ctx, ListQuery{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, "SFCLIST002", page[0].ReceiptNumber)

	page, cursor, err = repo.List(ctx, ListQuery{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Nil(t, cursor)
	assert.Equal(t, "SFCLIST000", page[0].ReceiptNumber)
}

func TestListUnmatchedWindow(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	inWindow := seedPayment(t, db, func(p *models.MpesaPayment) {
		p.TransactionDate = day.Add(10 * time.Hour)
	})
	seedPayment(t, db, func(p *models.MpesaPayment) {
		p.TransactionDate = day.Add(10 * time.Hour)
		p.IsMatched = true
	})
	seedPayment(t, db, func(p *models.MpesaPayment) {
		p.TransactionDate = day.Add(-2 * time.Hour)
	})

	listed, err := repo.ListUnmatched(ctx, day, day.Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, inWindow.ID, listed[0].ID)
}

func TestUnmatchedStats(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedPayment(t, db, func(p *models.MpesaPayment) {
		p.Amount = decimal.NewFromInt(300)
	})
	seedPayment(t, db, func(p *models.MpesaPayment) {
		p.Amount = decimal.NewFromInt(250)
	})
	seedPayment(t, db, func(p *models.MpesaPayment) {
		p.Amount = decimal.NewFromInt(999)
		p.IsMatched = true
	})

	count, total, err := repo.UnmatchedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, total.Equal(decimal.NewFromInt(550)), "got %s", total)
}

func TestUnmatchedStatsEmptyTable(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	count, total, err := repo.UnmatchedStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.True(t, total.IsZero())
}
