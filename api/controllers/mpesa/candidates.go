package mpesa

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/internal/matcher"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

type candidateResponse struct {
	ID                string          `json:"id"`
	TransactionNumber int64           `json:"transaction_number"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	PaymentMethod     string          `json:"payment_method"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

type candidatesResponse struct {
	Payment    paymentResponse     `json:"payment"`
	Candidates []candidateResponse `json:"candidates"`
}

// Candidates suggests POS transactions an unmatched payment could belong to,
// bounded by amount and time proximity.
func Candidates(svc matcher.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matcher service unavailable"))
			return
		}

		paymentID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "paymentId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, candidates, err := svc.FindCandidates(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := candidatesResponse{
			Payment:    paymentToResponse(*payment),
			Candidates: make([]candidateResponse, len(candidates)),
		}
		for i, candidate := range candidates {
			payload.Candidates[i] = candidateToResponse(candidate)
		}

		responses.WriteSuccess(w, payload)
	}
}

func candidateToResponse(transaction models.Transaction) candidateResponse {
	return candidateResponse{
		ID:                transaction.ID.String(),
		TransactionNumber: transaction.TransactionNumber,
		FinalAmount:       transaction.FinalAmount,
		PaymentMethod:     string(transaction.PaymentMethod),
		Status:            string(transaction.Status),
		CreatedAt:         transaction.CreatedAt,
	}
}
