package mpesa

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/netpoint-soft/cybercafe-backend/api/middleware"
	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/api/validators"
	"github.com/netpoint-soft/cybercafe-backend/internal/matcher"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

type manualMatchRequest struct {
	PaymentID     string `json:"payment_id" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Notes         string `json:"notes"`
}

// ManualMatch links an unmatched gateway payment to a POS transaction on the
// authority of the signed-in admin or manager.
func ManualMatch(svc matcher.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matcher service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload manualMatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		paymentID, err := uuid.Parse(strings.TrimSpace(payload.PaymentID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_id"))
			return
		}
		transactionID, err := uuid.Parse(strings.TrimSpace(payload.TransactionID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction_id"))
			return
		}

		var remoteIP *string
		if ip := middleware.ClientIP(r); ip != "" {
			remoteIP = &ip
		}

		matched, err := svc.ManualMatch(ctx, matcher.ManualMatchInput{
			PaymentID:     paymentID,
			TransactionID: transactionID,
			UserID:        userID,
			Notes:         validators.SanitizeString(payload.Notes, 500),
			IPAddress:     remoteIP,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentToResponse(*matched))
	}
}
