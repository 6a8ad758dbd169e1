package darajawebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netpoint-soft/cybercafe-backend/internal/audit"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/pkg/daraja"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
	"github.com/netpoint-soft/cybercafe-backend/pkg/metrics"
)

// Ack is the acknowledgement the provider expects on every callback delivery.
// ResultCode 0 tells the provider not to redeliver; 1 signals a processing
// failure where a retry might help.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type matcherService interface {
	ExactMatch(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.PaymentIntent, error)
	RecordUnmatched(ctx context.Context, tx *gorm.DB, callback daraja.CallbackData) (*models.MpesaPayment, bool, error)
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// ServiceParams collects the gate's dependencies.
type ServiceParams struct {
	IntentsRepo       intents.Repository
	Matcher           matcherService
	Audits            auditRecorder
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.CallbackMetrics
	AllowedCIDRs      []string
	AmountTolerance   decimal.Decimal
}

// Service is the security gate in front of callback processing. Every branch
// returns a well-formed acknowledgement and writes exactly one audit entry;
// state transitions for a callback happen inside a single transaction.
type Service struct {
	intents   intents.Repository
	matcher   matcherService
	audits    auditRecorder
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.CallbackMetrics
	allowlist []*net.IPNet
	tolerance decimal.Decimal
	now       func() time.Time
}

// NewService builds the callback gate. An empty CIDR list disables source
// address filtering.
func NewService(params ServiceParams) (*Service, error) {
	if params.IntentsRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if params.Matcher == nil {
		return nil, fmt.Errorf("matcher required")
	}
	if params.Audits == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.AmountTolerance.IsNegative() {
		return nil, fmt.Errorf("amount tolerance must not be negative")
	}

	allowlist := make([]*net.IPNet, 0, len(params.AllowedCIDRs))
	for _, cidr := range params.AllowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid callback CIDR %q: %w", cidr, err)
		}
		allowlist = append(allowlist, network)
	}

	return &Service{
		intents:   params.IntentsRepo,
		matcher:   params.Matcher,
		audits:    params.Audits,
		tx:        params.TransactionRunner,
		logg:      params.Logger,
		metrics:   params.Metrics,
		allowlist: allowlist,
		tolerance: params.AmountTolerance,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleCallback runs the full gate pipeline over a raw callback delivery.
// It never returns an error; every outcome maps to an acknowledgement.
func (s *Service) HandleCallback(ctx context.Context, remoteIP string, payload []byte) Ack {
	if !s.sourceAllowed(remoteIP) {
		s.logg.Warn(s.logg.WithField(ctx, "client_ip", remoteIP), "callback rejected: unauthorized source")
		s.recordAudit(ctx, nil, audit.RecordInput{
			Action:     enums.AuditActionCallbackRejected,
			EntityType: "daraja_callback",
			EntityID:   remoteIP,
			NewValue:   mustJSON(map[string]any{"reason": "unauthorized_ip", "client_ip": remoteIP}),
			IPAddress:  &remoteIP,
		})
		s.metrics.IncOutcome("unauthorized_ip")
		return Ack{ResultCode: 1, ResultDesc: "Unauthorized"}
	}

	callback, err := daraja.ExtractCallback(payload, s.now())
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "client_ip", remoteIP), "callback rejected: malformed payload")
		s.recordAudit(ctx, nil, audit.RecordInput{
			Action:     enums.AuditActionCallbackRejected,
			EntityType: "daraja_callback",
			EntityID:   remoteIP,
			NewValue:   mustJSON(map[string]any{"reason": "malformed_payload", "error": err.Error()}),
			IPAddress:  &remoteIP,
		})
		s.metrics.IncOutcome("malformed")
		return Ack{ResultCode: 1, ResultDesc: "Invalid callback data"}
	}

	if callback.CheckoutRequestID == "" {
		s.logg.Warn(ctx, "callback rejected: missing checkout request id")
		s.recordAudit(ctx, nil, audit.RecordInput{
			Action:     enums.AuditActionCallbackRejected,
			EntityType: "daraja_callback",
			EntityID:   remoteIP,
			NewValue:   mustJSON(map[string]any{"reason": "missing_checkout_request_id", "callback": json.RawMessage(callback.Raw)}),
			IPAddress:  &remoteIP,
		})
		s.metrics.IncOutcome("missing_checkout_id")
		return Ack{ResultCode: 1, ResultDesc: "Missing checkout request id"}
	}

	ctx = s.logg.WithCheckoutID(ctx, callback.CheckoutRequestID)

	var ack Ack
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		ack, err = s.process(ctx, tx, remoteIP, *callback)
		return err
	})
	if txErr != nil {
		s.logg.Error(ctx, "callback processing failed", txErr)
		s.recordAudit(ctx, nil, audit.RecordInput{
			Action:     enums.AuditActionCallbackError,
			EntityType: "daraja_callback",
			EntityID:   callback.CheckoutRequestID,
			NewValue:   mustJSON(map[string]any{"error": txErr.Error(), "client_ip": remoteIP}),
			IPAddress:  &remoteIP,
		})
		s.metrics.IncOutcome("error")
		return Ack{ResultCode: 1, ResultDesc: "Internal error"}
	}
	return ack
}

// process is steps four through nine of the pipeline. Runs inside one
// transaction so an intent never settles without its side effects.
func (s *Service) process(ctx context.Context, tx *gorm.DB, remoteIP string, callback daraja.CallbackData) (Ack, error) {
	intentsRepo := s.intents.WithTx(tx)

	intent, err := intentsRepo.FindByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err != nil {
		return Ack{}, err
	}

	if intent == nil {
		s.logg.Warn(ctx, "callback for unknown checkout request")
		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCallbackUnknownRequest,
			EntityType: "daraja_callback",
			EntityID:   callback.CheckoutRequestID,
			NewValue:   mustJSON(map[string]any{"callback": json.RawMessage(callback.Raw), "client_ip": remoteIP}),
			IPAddress:  &remoteIP,
		}); err != nil {
			return Ack{}, err
		}
		s.metrics.IncOutcome("unknown_request")
		return Ack{ResultCode: 0, ResultDesc: "Accepted"}, nil
	}

	if intent.Status.IsTerminal() {
		s.logg.Warn(ctx, "callback replay against settled intent")
		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCallbackReplayDetected,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			NewValue: mustJSON(map[string]any{
				"existing_status": intent.Status,
				"callback":        json.RawMessage(callback.Raw),
			}),
			IPAddress: &remoteIP,
		}); err != nil {
			return Ack{}, err
		}
		s.metrics.IncOutcome("replay")
		return Ack{ResultCode: 0, ResultDesc: "Already processed"}, nil
	}

	if !callback.IsSuccess() {
		if _, err := intentsRepo.MarkFailed(ctx, intent.ID, callback.ResultDesc, callback.Raw); err != nil {
			return Ack{}, err
		}
		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCallbackFailed,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			NewValue: mustJSON(map[string]any{
				"result_code": callback.ResultCode,
				"result_desc": callback.ResultDesc,
			}),
			IPAddress: &remoteIP,
		}); err != nil {
			return Ack{}, err
		}
		s.metrics.IncOutcome("failed")
		return Ack{ResultCode: 0, ResultDesc: "Success"}, nil
	}

	if !callback.HasAmount || callback.Amount.Sub(intent.Amount).Abs().GreaterThan(s.tolerance) {
		reason := fmt.Sprintf("Amount mismatch: expected %s, got %s", intent.Amount, callback.Amount)
		if _, err := intentsRepo.MarkFailed(ctx, intent.ID, reason, callback.Raw); err != nil {
			return Ack{}, err
		}
		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCallbackAmountMismatch,
			EntityType: "payment_intent",
			EntityID:   intent.ID.String(),
			NewValue: mustJSON(map[string]any{
				"expected_amount": intent.Amount,
				"received_amount": callback.Amount,
				"difference":      callback.Amount.Sub(intent.Amount).Abs(),
			}),
			IPAddress: &remoteIP,
		}); err != nil {
			return Ack{}, err
		}
		s.metrics.IncOutcome("amount_mismatch")
		return Ack{ResultCode: 1, ResultDesc: "Amount mismatch"}, nil
	}

	matched, err := s.matcher.ExactMatch(ctx, tx, callback)
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeStateConflict {
			// Lost the settle race to a concurrent delivery.
			if _, auditErr := s.audits.Record(ctx, tx, audit.RecordInput{
				Action:     enums.AuditActionCallbackReplayDetected,
				EntityType: "payment_intent",
				EntityID:   intent.ID.String(),
				NewValue:   mustJSON(map[string]any{"callback": json.RawMessage(callback.Raw)}),
				IPAddress:  &remoteIP,
			}); auditErr != nil {
				return Ack{}, auditErr
			}
			s.metrics.IncOutcome("replay")
			return Ack{ResultCode: 0, ResultDesc: "Already processed"}, nil
		}
		return Ack{}, err
	}

	if matched == nil {
		payment, created, err := s.matcher.RecordUnmatched(ctx, tx, callback)
		if err != nil {
			return Ack{}, err
		}
		if created {
			s.logg.Warn(ctx, "filed unmatched payment for manual review")
		}
		if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCallbackUnmatchedSaved,
			EntityType: "mpesa_payment",
			EntityID:   payment.ID.String(),
			NewValue: mustJSON(map[string]any{
				"receipt_number": payment.ReceiptNumber,
				"amount":         payment.Amount,
			}),
			IPAddress: &remoteIP,
		}); err != nil {
			return Ack{}, err
		}
		s.metrics.IncOutcome("unmatched")
		return Ack{ResultCode: 0, ResultDesc: "Success"}, nil
	}

	s.logg.Info(ctx, "callback settled payment intent")
	if _, err := s.audits.Record(ctx, tx, audit.RecordInput{
		Action:     enums.AuditActionCallbackProcessed,
		EntityType: "payment_intent",
		EntityID:   matched.ID.String(),
		NewValue: mustJSON(map[string]any{
			"receipt_number": callback.ReceiptNumber,
			"amount":         callback.Amount,
		}),
		IPAddress: &remoteIP,
	}); err != nil {
		return Ack{}, err
	}
	s.metrics.IncOutcome("confirmed")
	return Ack{ResultCode: 0, ResultDesc: "Success"}, nil
}

func (s *Service) sourceAllowed(remoteIP string) bool {
	if len(s.allowlist) == 0 {
		return true
	}
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}
	for _, network := range s.allowlist {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// recordAudit is best effort for branches outside the transaction; a failed
// audit write must not change the acknowledgement.
func (s *Service) recordAudit(ctx context.Context, tx *gorm.DB, input audit.RecordInput) {
	if _, err := s.audits.Record(ctx, tx, input); err != nil {
		s.logg.Error(ctx, "failed to record callback audit", err)
	}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
