package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/internal/audit"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/internal/payments"
	"github.com/netpoint-soft/cybercafe-backend/internal/transactions"
	"github.com/netpoint-soft/cybercafe-backend/pkg/daraja"
	pkgdb "github.com/netpoint-soft/cybercafe-backend/pkg/db"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// Service ties confirmed gateway payments to POS transactions. The exact and
// unmatched paths run inside the caller's transaction; manual matching opens
// its own.
type Service interface {
	ExactMatch(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.PaymentIntent, error)
	RecordUnmatched(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.MpesaPayment, bool, error)
	FindCandidates(ctx context.Context, paymentID uuid.UUID) (*models.MpesaPayment, []models.Transaction, error)
	ManualMatch(ctx context.Context, input ManualMatchInput) (*models.MpesaPayment, error)
}

type service struct {
	payments     payments.Repository
	intents      intents.Repository
	transactions transactions.Repository
	audits       auditRecorder
	tx           txRunner
	amountBand   decimal.Decimal
	timeWindow   time.Duration
	now          func() time.Time
}

// ManualMatchInput captures an operator's decision to link an unmatched
// payment to a transaction.
type ManualMatchInput struct {
	PaymentID     uuid.UUID
	TransactionID uuid.UUID
	UserID        uuid.UUID
	Notes         string
	IPAddress     *string
}

// NewService wires a matcher with its repositories and fuzzy-match bounds.
func NewService(paymentsRepo payments.Repository, intentsRepo intents.Repository, transactionsRepo transactions.Repository, audits auditRecorder, tx txRunner, amountBand decimal.Decimal, timeWindow time.Duration) (Service, error) {
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if intentsRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if transactionsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if !amountBand.IsPositive() {
		return nil, fmt.Errorf("amount band must be positive")
	}
	if timeWindow <= 0 {
		return nil, fmt.Errorf("time window must be positive")
	}
	return &service{
		payments:     paymentsRepo,
		intents:      intentsRepo,
		transactions: transactionsRepo,
		audits:       audits,
		tx:           tx,
		amountBand:   amountBand,
		timeWindow:   timeWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// ExactMatch settles a confirmed callback against the intent owning its
// checkout id: the intent moves to CONFIRMED with the receipt and paid-at
// stamped, and the receipt propagates onto the POS transaction. Returns nil
// when no intent owns the checkout id; the caller then files the payment as
// unmatched. Runs inside the caller's tx.
func (s *service) ExactMatch(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.PaymentIntent, error) {
	intentsRepo := s.intents.WithTx(tx)
	intent, err := intentsRepo.FindByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, nil
	}

	confirmedAt := s.now()
	paidAt := callback.TransactionDate
	if paidAt.IsZero() {
		paidAt = confirmedAt
	}

	won, err := intentsRepo.Confirm(ctx, intent.ID, intents.Confirmation{
		ReceiptNumber: callback.ReceiptNumber,
		GatewayPaidAt: paidAt,
		ConfirmedAt:   confirmedAt,
		CallbackData:  callback.Raw,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "intent already settled")
	}

	if err := s.transactions.WithTx(tx).SetMpesaCode(ctx, intent.TransactionID, callback.ReceiptNumber); err != nil {
		return nil, err
	}

	intent.Status = enums.IntentStatusConfirmed
	intent.ReceiptNumber = &callback.ReceiptNumber
	intent.GatewayPaidAt = &paidAt
	intent.ConfirmedAt = &confirmedAt
	intent.CallbackData = callback.Raw
	return intent, nil
}

// RecordUnmatched files a confirmed payment no intent claimed. Idempotent by
// receipt number; the second return reports whether a new row was created.
func (s *service) RecordUnmatched(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.MpesaPayment, bool, error) {
	if callback.ReceiptNumber == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "receipt number required")
	}

	repo := s.payments.WithTx(tx)
	existing, err := repo.FindByReceipt(ctx, callback.ReceiptNumber)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	paidAt := callback.TransactionDate
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	payment := &models.MpesaPayment{
		ReceiptNumber:   callback.ReceiptNumber,
		Amount:          callback.Amount,
		PhoneNumber:     callback.PhoneNumber,
		TransactionDate: paidAt,
		RawCallbackData: callback.Raw,
	}
	if err := repo.Create(ctx, payment); err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			existing, findErr := repo.FindByReceipt(ctx, callback.ReceiptNumber)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return payment, true, nil
}

// FindCandidates lists completed mpesa sales that could explain an unmatched
// payment: amount within the band, created within the window, no receipt yet.
func (s *service) FindCandidates(ctx context.Context, paymentID uuid.UUID) (*models.MpesaPayment, []models.Transaction, error) {
	if paymentID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment")
	}
	if payment == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.IsMatched {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already matched")
	}

	candidates, err := s.transactions.FindCandidates(ctx, transactions.CandidateQuery{
		AmountMin: payment.Amount.Sub(s.amountBand),
		AmountMax: payment.Amount.Add(s.amountBand),
		From:      payment.TransactionDate.Add(-s.timeWindow),
		To:        payment.TransactionDate.Add(s.timeWindow),
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to search candidates")
	}
	return payment, candidates, nil
}

// ManualMatch links an unmatched payment to a transaction on an operator's
// say-so. The is_matched guard arbitrates concurrent operators; a pending
// intent on the same transaction is confirmed as a side effect.
func (s *service) ManualMatch(ctx context.Context, input ManualMatchInput) (*models.MpesaPayment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var matched *models.MpesaPayment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsRepo := s.payments.WithTx(tx)
		payment, err := paymentsRepo.FindByID(ctx, input.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if payment.IsMatched {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already matched")
		}

		transaction, err := s.transactions.WithTx(tx).FindByID(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if transaction == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}

		matchedAt := s.now()
		update := payments.MatchUpdate{
			TransactionID: input.TransactionID,
			MatchedBy:     &input.UserID,
			MatchedAt:     matchedAt,
		}

		intentsRepo := s.intents.WithTx(tx)
		pending, err := intentsRepo.FindPendingByTransaction(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if pending != nil {
			if _, err := intentsRepo.Confirm(ctx, pending.ID, intents.Confirmation{
				ReceiptNumber: payment.ReceiptNumber,
				GatewayPaidAt: payment.TransactionDate,
				ConfirmedAt:   matchedAt,
				CallbackData:  payment.RawCallbackData,
			}); err != nil {
				return err
			}
			update.IntentID = &pending.ID
		}

		won, err := paymentsRepo.MarkMatched(ctx, payment.ID, update)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already matched")
		}

		if err := s.transactions.WithTx(tx).SetMpesaCode(ctx, input.TransactionID, payment.ReceiptNumber); err != nil {
			return err
		}

		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			UserID:     &input.UserID,
			Action:     enums.AuditActionManualMatch,
			EntityType: "mpesa_payment",
			EntityID:   payment.ID.String(),
			OldValue:   mustJSON(map[string]any{"is_matched": false}),
			NewValue: mustJSON(map[string]any{
				"is_matched":             true,
				"matched_transaction_id": input.TransactionID,
				"notes":                  input.Notes,
			}),
			IPAddress: input.IPAddress,
		}); err != nil {
			return err
		}

		refreshed, err := paymentsRepo.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		matched = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
