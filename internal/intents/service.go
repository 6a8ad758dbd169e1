package intents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/internal/audit"
	"github.com/netpoint-soft/cybercafe-backend/pkg/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayClient interface {
	InitiatePush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference, description string) daraja.PushResult
	QueryStatus(ctx context.Context, checkoutRequestID string) daraja.QueryResult
}

type transactionsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// Service manages the lifecycle of STK push payment intents.
type Service interface {
	InitiatePush(ctx context.Context, input InitiateInput) (*models.PaymentIntent, *daraja.PushResult, error)
	GetIntent(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	GatewayStatus(ctx context.Context, id uuid.UUID) (*daraja.QueryResult, error)
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo         Repository
	transactions transactionsRepository
	gateway      gatewayClient
	audits       auditRecorder
	tx           txRunner
	intentTTL    time.Duration
	now          func() time.Time
}

// InitiateInput captures a cashier's request to push a payment prompt.
type InitiateInput struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	PhoneNumber   string
	CreatedBy     uuid.UUID
}

// NewService wires an intent service with its repositories and gateway client.
func NewService(repo Repository, transactions transactionsRepository, gateway gatewayClient, audits auditRecorder, tx txRunner, intentTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if intentTTL <= 0 {
		return nil, fmt.Errorf("intent ttl must be positive")
	}
	return &service{
		repo:         repo,
		transactions: transactions,
		gateway:      gateway,
		audits:       audits,
		tx:           tx,
		intentTTL:    intentTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// InitiatePush creates a pending intent and asks the gateway to prompt the
// payer. The intent is persisted before the gateway call so a push that fails
// mid-flight still leaves a FAILED row with the provider's reason.
func (s *service) InitiatePush(ctx context.Context, input InitiateInput) (*models.PaymentIntent, *daraja.PushResult, error) {
	if input.TransactionID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Amount.IsPositive() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	phone, err := daraja.NormalizePhone(input.PhoneNumber)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid phone number")
	}

	transaction, err := s.transactions.FindByID(ctx, input.TransactionID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load transaction")
	}
	if transaction == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}

	active, err := s.repo.FindActiveByTransaction(ctx, input.TransactionID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to check existing intents")
	}
	if active != nil && !active.IsExpired(s.now()) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment intent already exists with status %s", active.Status)).
			WithDetails(map[string]any{"intent_id": active.ID, "status": active.Status})
	}
	if active != nil {
		// Lapsed pending intent blocking the slot. Retire it first.
		if _, err := s.repo.MarkExpired(ctx, active.ID); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to expire stale intent")
		}
	}

	now := s.now()
	intent := &models.PaymentIntent{
		TransactionID: input.TransactionID,
		Amount:        input.Amount,
		PhoneNumber:   phone,
		Status:        enums.IntentStatusPending,
		CreatedBy:     input.CreatedBy,
		ExpiresAt:     now.Add(s.intentTTL),
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, intent); err != nil {
			return err
		}
		_, err := s.audits.Record(ctx, tx, audit.RecordInput{
			UserID:     &input.CreatedBy,
			Action:     enums.AuditActionIntentCreated,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			NewValue:   mustJSON(map[string]any{"transaction_id": input.TransactionID, "amount": input.Amount, "phone_number": phone}),
		})
		return err
	}); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create payment intent")
	}

	result := s.gateway.InitiatePush(ctx, phone, input.Amount,
		input.TransactionID.String(),
		fmt.Sprintf("Payment for Transaction #%d", transaction.TransactionNumber))

	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "STK push failed"
		}
		if _, err := s.repo.MarkFailed(ctx, intent.ID, reason, nil); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record push failure")
		}
		_, _ = s.audits.Record(ctx, nil, audit.RecordInput{
			UserID:     &input.CreatedBy,
			Action:     enums.AuditActionStkPushInitiateFailed,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			NewValue:   mustJSON(map[string]any{"reason": reason, "response_code": result.ResponseCode}),
		})
		return nil, nil, pkgerrors.New(pkgerrors.CodeGateway, reason).
			WithDetails(map[string]any{"intent_id": intent.ID})
	}

	if err := s.repo.SetGatewayRefs(ctx, intent.ID, result.MerchantRequestID, result.CheckoutRequestID); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store gateway references")
	}
	intent.MerchantRequestID = &result.MerchantRequestID
	intent.CheckoutRequestID = &result.CheckoutRequestID

	_, _ = s.audits.Record(ctx, nil, audit.RecordInput{
		UserID:     &input.CreatedBy,
		Action:     enums.AuditActionStkPushInitiated,
		EntityType: "payment_intent",
		EntityID:   intent.ID.String(),
		NewValue:   mustJSON(map[string]any{"checkout_request_id": result.CheckoutRequestID}),
	})

	return intent, &result, nil
}

// GetIntent returns an intent, lazily retiring it when its TTL has lapsed.
// The guarded update means only one reader records the expiry.
func (s *service) GetIntent(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	intent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment intent")
	}
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}

	if intent.IsExpired(s.now()) {
		won, err := s.repo.MarkExpired(ctx, intent.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to expire payment intent")
		}
		if won {
			_, _ = s.audits.Record(ctx, nil, audit.RecordInput{
				Action:     enums.AuditActionIntentExpired,
				EntityType: "payment_intent",
				EntityID:   intent.ID.String(),
				OldValue:   mustJSON(map[string]any{"status": enums.IntentStatusPending}),
				NewValue:   mustJSON(map[string]any{"status": enums.IntentStatusExpired}),
			})
		}
		refreshed, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload payment intent")
		}
		if refreshed != nil {
			intent = refreshed
		}
	}

	return intent, nil
}

// GatewayStatus queries the provider for the live status of a push. It never
// mutates the intent; settlement happens only through the callback path.
func (s *service) GatewayStatus(ctx context.Context, id uuid.UUID) (*daraja.QueryResult, error) {
	intent, err := s.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.CheckoutRequestID == nil || *intent.CheckoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "intent has no gateway reference")
	}
	result := s.gateway.QueryStatus(ctx, *intent.CheckoutRequestID)
	return &result, nil
}

// ExpireStale sweeps pending intents past their TTL. Each transition is the
// same guarded update the lazy read path uses, so the sweep and concurrent
// reads never double-record an expiry.
func (s *service) ExpireStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, intent := range stale {
		won, err := s.repo.MarkExpired(ctx, intent.ID)
		if err != nil {
			return expired, err
		}
		if !won {
			continue
		}
		expired++
		_, _ = s.audits.Record(ctx, nil, audit.RecordInput{
			Action:     enums.AuditActionIntentExpired,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			OldValue:   mustJSON(map[string]any{"status": enums.IntentStatusPending}),
			NewValue:   mustJSON(map[string]any{"status": enums.IntentStatusExpired}),
		})
	}
	return expired, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
