package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
)

type stubTransactionsRepo struct {
	count int64
	total decimal.Decimal
	err   error

	from time.Time
	to   time.Time
}

func (s *stubTransactionsRepo) SumCompletedMpesa(_ context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	s.from = from
	s.to = to
	return s.count, s.total, s.err
}

type stubIntentsRepo struct {
	confirmedCount int64
	confirmedTotal decimal.Decimal
	failed         []models.PaymentIntent
	expired        []models.PaymentIntent
}

func (s *stubIntentsRepo) SumConfirmed(context.Context, time.Time, time.Time) (int64, decimal.Decimal, error) {
	return s.confirmedCount, s.confirmedTotal, nil
}

func (s *stubIntentsRepo) ListByStatusCreated(_ context.Context, status enums.IntentStatus, _, _ time.Time) ([]models.PaymentIntent, error) {
	switch status {
	case enums.IntentStatusFailed:
		return s.failed, nil
	case enums.IntentStatusExpired:
		return s.expired, nil
	}
	return nil, nil
}

type stubPaymentsRepo struct {
	unmatched []models.MpesaPayment
}

func (s *stubPaymentsRepo) ListUnmatched(context.Context, time.Time, time.Time) ([]models.MpesaPayment, error) {
	return s.unmatched, nil
}

func intentWithAmount(amount int64) models.PaymentIntent {
	return models.PaymentIntent{ID: uuid.New(), Amount: decimal.NewFromInt(amount)}
}

func paymentWithAmount(amount int64) models.MpesaPayment {
	return models.MpesaPayment{ID: uuid.New(), Amount: decimal.NewFromInt(amount)}
}

func TestDailyReportAggregatesDay(t *testing.T) {
	transactionsRepo := &stubTransactionsRepo{count: 20, total: decimal.NewFromInt(10000)}
	intentsRepo := &stubIntentsRepo{
		confirmedCount: 18,
		confirmedTotal: decimal.NewFromInt(9800),
		failed:         []models.PaymentIntent{intentWithAmount(300), intentWithAmount(150)},
		expired:        []models.PaymentIntent{intentWithAmount(500)},
	}
	paymentsRepo := &stubPaymentsRepo{
		unmatched: []models.MpesaPayment{paymentWithAmount(200), paymentWithAmount(350)},
	}

	svc, err := NewService(transactionsRepo, intentsRepo, paymentsRepo)
	require.NoError(t, err)

	day := time.Date(2026, time.March, 10, 15, 42, 0, 0, time.UTC)
	report, err := svc.DailyReport(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), report.Date)
	assert.Equal(t, int64(20), report.ExpectedCount)
	assert.True(t, report.ExpectedTotal.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, int64(18), report.ConfirmedCount)
	assert.True(t, report.ConfirmedTotal.Equal(decimal.NewFromInt(9800)))

	assert.Equal(t, int64(2), report.UnmatchedCount)
	assert.True(t, report.UnmatchedTotal.Equal(decimal.NewFromInt(550)))
	assert.Equal(t, int64(2), report.FailedCount)
	assert.True(t, report.FailedTotal.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, int64(1), report.ExpiredCount)
	assert.True(t, report.ExpiredTotal.Equal(decimal.NewFromInt(500)))

	assert.True(t, report.VarianceAmount.Equal(decimal.NewFromInt(-200)))
	assert.True(t, report.VariancePercentage.Equal(decimal.NewFromInt(-2)))

	assert.Len(t, report.UnmatchedPayments, 2)
	assert.Len(t, report.FailedIntents, 2)
}

func TestDailyReportWindowCoversFullCalendarDay(t *testing.T) {
	transactionsRepo := &stubTransactionsRepo{total: decimal.Zero}
	svc, err := NewService(transactionsRepo, &stubIntentsRepo{confirmedTotal: decimal.Zero}, &stubPaymentsRepo{})
	require.NoError(t, err)

	_, err = svc.DailyReport(context.Background(), time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), transactionsRepo.from)
	assert.Equal(t, time.Date(2026, time.March, 10, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), transactionsRepo.to)
}

func TestDailyReportZeroExpectedSkipsPercentage(t *testing.T) {
	svc, err := NewService(
		&stubTransactionsRepo{total: decimal.Zero},
		&stubIntentsRepo{confirmedTotal: decimal.NewFromInt(120)},
		&stubPaymentsRepo{},
	)
	require.NoError(t, err)

	report, err := svc.DailyReport(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, report.VarianceAmount.Equal(decimal.NewFromInt(120)))
	assert.True(t, report.VariancePercentage.IsZero())
}

func TestDailyReportPropagatesRepositoryErrors(t *testing.T) {
	svc, err := NewService(
		&stubTransactionsRepo{total: decimal.Zero, err: errors.New("connection reset")},
		&stubIntentsRepo{confirmedTotal: decimal.Zero},
		&stubPaymentsRepo{},
	)
	require.NoError(t, err)

	_, err = svc.DailyReport(context.Background(), time.Now().UTC())
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeInternal, coded.Code())
}

func TestNewServiceRequiresRepositories(t *testing.T) {
	_, err := NewService(nil, &stubIntentsRepo{}, &stubPaymentsRepo{})
	assert.Error(t, err)

	_, err = NewService(&stubTransactionsRepo{}, nil, &stubPaymentsRepo{})
	assert.Error(t, err)

	_, err = NewService(&stubTransactionsRepo{}, &stubIntentsRepo{}, nil)
	assert.Error(t, err)
}
