package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
)

type transactionsRepository interface {
	SumCompletedMpesa(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)
}

type intentsRepository interface {
	SumConfirmed(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)
	ListByStatusCreated(ctx context.Context, status enums.IntentStatus, from, to time.Time) ([]models.PaymentIntent, error)
}

type paymentsRepository interface {
	ListUnmatched(ctx context.Context, from, to time.Time) ([]models.MpesaPayment, error)
}

// Service produces the daily reconciliation view. Read-only; it never mutates
// payment state.
type Service interface {
	DailyReport(ctx context.Context, day time.Time) (*Report, error)
}

// Report compares what the POS expected to collect over mobile money against
// what the gateway confirmed, for one calendar day.
type Report struct {
	Date time.Time `json:"date"`

	ExpectedCount int64           `json:"expected_mpesa_count"`
	ExpectedTotal decimal.Decimal `json:"expected_mpesa_total"`

	ConfirmedCount int64           `json:"confirmed_count"`
	ConfirmedTotal decimal.Decimal `json:"confirmed_total"`

	UnmatchedCount int64           `json:"unmatched_count"`
	UnmatchedTotal decimal.Decimal `json:"unmatched_total"`

	FailedCount int64           `json:"failed_count"`
	FailedTotal decimal.Decimal `json:"failed_total"`

	ExpiredCount int64           `json:"expired_count"`
	ExpiredTotal decimal.Decimal `json:"expired_total"`

	VarianceAmount     decimal.Decimal `json:"variance_amount"`
	VariancePercentage decimal.Decimal `json:"variance_percentage"`

	UnmatchedPayments []models.MpesaPayment  `json:"unmatched_payments"`
	FailedIntents     []models.PaymentIntent `json:"failed_intents"`
}

type service struct {
	transactions transactionsRepository
	intents      intentsRepository
	payments     paymentsRepository
}

// NewService wires a reconciliation reporter over the payment repositories.
func NewService(transactions transactionsRepository, intents intentsRepository, payments paymentsRepository) (Service, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &service{
		transactions: transactions,
		intents:      intents,
		payments:     payments,
	}, nil
}

func (s *service) DailyReport(ctx context.Context, day time.Time) (*Report, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)

	expectedCount, expectedTotal, err := s.transactions.SumCompletedMpesa(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to aggregate expected totals")
	}

	confirmedCount, confirmedTotal, err := s.intents.SumConfirmed(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to aggregate confirmed totals")
	}

	unmatched, err := s.payments.ListUnmatched(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list unmatched payments")
	}
	unmatchedTotal := decimal.Zero
	for _, payment := range unmatched {
		unmatchedTotal = unmatchedTotal.Add(payment.Amount)
	}

	failed, err := s.intents.ListByStatusCreated(ctx, enums.IntentStatusFailed, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list failed intents")
	}
	failedTotal := decimal.Zero
	for _, intent := range failed {
		failedTotal = failedTotal.Add(intent.Amount)
	}

	expired, err := s.intents.ListByStatusCreated(ctx, enums.IntentStatusExpired, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list expired intents")
	}
	expiredTotal := decimal.Zero
	for _, intent := range expired {
		expiredTotal = expiredTotal.Add(intent.Amount)
	}

	variance := confirmedTotal.Sub(expectedTotal)
	percentage := decimal.Zero
	if expectedTotal.IsPositive() {
		percentage = variance.Div(expectedTotal).Mul(decimal.NewFromInt(100))
	}

	return &Report{
		Date:               start,
		ExpectedCount:      expectedCount,
		ExpectedTotal:      expectedTotal,
		ConfirmedCount:     confirmedCount,
		ConfirmedTotal:     confirmedTotal,
		UnmatchedCount:     int64(len(unmatched)),
		UnmatchedTotal:     unmatchedTotal,
		FailedCount:        int64(len(failed)),
		FailedTotal:        failedTotal,
		ExpiredCount:       int64(len(expired)),
		ExpiredTotal:       expiredTotal,
		VarianceAmount:     variance,
		VariancePercentage: percentage,
		UnmatchedPayments:  unmatched,
		FailedIntents:      failed,
	}, nil
}
