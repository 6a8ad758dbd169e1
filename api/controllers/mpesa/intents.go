package mpesa

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

type intentResponse struct {
	ID                string          `json:"id"`
	TransactionID     string          `json:"transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
	PhoneNumber       string          `json:"phone_number"`
	Status            string          `json:"status"`
	MerchantRequestID *string         `json:"merchant_request_id,omitempty"`
	CheckoutRequestID *string         `json:"checkout_request_id,omitempty"`
	ReceiptNumber     *string         `json:"receipt_number,omitempty"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
}

type gatewayStatusResponse struct {
	Success             bool   `json:"success"`
	ResponseCode        string `json:"response_code,omitempty"`
	ResponseDescription string `json:"response_description,omitempty"`
	ResultCode          string `json:"result_code,omitempty"`
	ResultDesc          string `json:"result_desc,omitempty"`
	Error               string `json:"error,omitempty"`
}

// IntentStatus returns an intent's current state, lazily expiring it when the
// TTL has lapsed.
func IntentStatus(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent service unavailable"))
			return
		}

		intentID, err := uuid.Parse(chi.URLParam(r, "intentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}

		intent, err := svc.GetIntent(ctx, intentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, intentToResponse(intent))
	}
}

// GatewayStatus queries the provider for the live status of a pushed prompt.
func GatewayStatus(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent service unavailable"))
			return
		}

		intentID, err := uuid.Parse(chi.URLParam(r, "intentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}

		result, err := svc.GatewayStatus(ctx, intentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, gatewayStatusResponse{
			Success:             result.Success,
			ResponseCode:        result.ResponseCode,
			ResponseDescription: result.ResponseDescription,
			ResultCode:          result.ResultCode,
			ResultDesc:          result.ResultDesc,
			Error:               result.Error,
		})
	}
}

func intentToResponse(intent *models.PaymentIntent) intentResponse {
	return intentResponse{
		ID:                intent.ID.String(),
		TransactionID:     intent.TransactionID.String(),
		Amount:            intent.Amount,
		PhoneNumber:       intent.PhoneNumber,
		Status:            string(intent.Status),
		MerchantRequestID: intent.MerchantRequestID,
		CheckoutRequestID: intent.CheckoutRequestID,
		ReceiptNumber:     intent.ReceiptNumber,
		FailureReason:     intent.FailureReason,
		CreatedAt:         intent.CreatedAt,
		ExpiresAt:         intent.ExpiresAt,
		ConfirmedAt:       intent.ConfirmedAt,
	}
}
