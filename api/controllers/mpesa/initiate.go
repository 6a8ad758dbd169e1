package mpesa

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/api/middleware"
	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/api/validators"
	"github.com/netpoint-soft/cybercafe-backend/internal/intents"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

type initiateRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	PhoneNumber   string `json:"phone_number" validate:"required"`
}

type initiateResponse struct {
	PaymentIntentID     string `json:"payment_intent_id"`
	CheckoutRequestID   string `json:"checkout_request_id"`
	MerchantRequestID   string `json:"merchant_request_id"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
	CustomerMessage     string `json:"customer_message"`
}

// Initiate creates a payment intent for a transaction and pushes the payment
// prompt to the customer's phone.
func Initiate(svc intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		transactionID, err := uuid.Parse(strings.TrimSpace(payload.TransactionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction_id"))
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		intent, push, err := svc.InitiatePush(ctx, intents.InitiateInput{
			TransactionID: transactionID,
			Amount:        amount,
			PhoneNumber:   payload.PhoneNumber,
			CreatedBy:     userID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, initiateResponse{
			PaymentIntentID:     intent.ID.String(),
			CheckoutRequestID:   push.CheckoutRequestID,
			MerchantRequestID:   push.MerchantRequestID,
			ResponseCode:        push.ResponseCode,
			ResponseDescription: push.ResponseDescription,
			CustomerMessage:     push.CustomerMessage,
		})
	}
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}
