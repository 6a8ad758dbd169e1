package mpesa

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/api/responses"
	"github.com/netpoint-soft/cybercafe-backend/api/validators"
	"github.com/netpoint-soft/cybercafe-backend/internal/payments"
	"github.com/netpoint-soft/cybercafe-backend/pkg/db/models"
	pkgerrors "github.com/netpoint-soft/cybercafe-backend/pkg/errors"
	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
	"github.com/netpoint-soft/cybercafe-backend/pkg/pagination"
)

const inboxDateLayout = "2006-01-02"

type paymentResponse struct {
	ID                   string          `json:"id"`
	ReceiptNumber        string          `json:"receipt_number"`
	Amount               decimal.Decimal `json:"amount"`
	PhoneNumber          string          `json:"phone_number"`
	TransactionDate      time.Time       `json:"transaction_date"`
	SenderName           *string         `json:"sender_name,omitempty"`
	IsMatched            bool            `json:"is_matched"`
	MatchedTransactionID *string         `json:"matched_transaction_id,omitempty"`
	MatchedAt            *time.Time      `json:"matched_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

type inboxResponse struct {
	Items          []paymentResponse `json:"items"`
	Cursor         string            `json:"cursor"`
	UnmatchedCount int64             `json:"unmatched_count"`
	UnmatchedTotal decimal.Decimal   `json:"unmatched_total"`
}

// Inbox lists gateway payments, matched and unmatched, with running
// unmatched totals for the reconciliation screen.
func Inbox(repo payments.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments repository unavailable"))
			return
		}

		query := r.URL.Query()

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var cursor *pagination.Cursor
		if raw := strings.TrimSpace(query.Get("cursor")); raw != "" {
			parsed, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			cursor = parsed
		}

		var isMatched *bool
		if raw := strings.TrimSpace(query.Get("is_matched")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "is_matched must be a boolean"))
				return
			}
			isMatched = &parsed
		}

		dateFrom, err := parseInboxDate(query.Get("date_from"), false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dateTo, err := parseInboxDate(query.Get("date_to"), true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, next, err := repo.List(ctx, payments.ListQuery{
			Limit:     limit,
			Cursor:    cursor,
			IsMatched: isMatched,
			DateFrom:  dateFrom,
			DateTo:    dateTo,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list payments"))
			return
		}

		unmatchedCount, unmatchedTotal, err := repo.UnmatchedStats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load unmatched stats"))
			return
		}

		payload := inboxResponse{
			Items:          make([]paymentResponse, len(items)),
			UnmatchedCount: unmatchedCount,
			UnmatchedTotal: unmatchedTotal,
		}
		for i, item := range items {
			payload.Items[i] = paymentToResponse(item)
		}
		if next != nil {
			payload.Cursor = pagination.EncodeCursor(*next)
		}

		responses.WriteSuccess(w, payload)
	}
}

func parseInboxDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(inboxDateLayout, raw, time.UTC)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date, expected YYYY-MM-DD")
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

func paymentToResponse(payment models.MpesaPayment) paymentResponse {
	resp := paymentResponse{
		ID:              payment.ID.String(),
		ReceiptNumber:   payment.ReceiptNumber,
		Amount:          payment.Amount,
		PhoneNumber:     payment.PhoneNumber,
		TransactionDate: payment.TransactionDate,
		SenderName:      payment.SenderName,
		IsMatched:       payment.IsMatched,
		MatchedAt:       payment.MatchedAt,
		CreatedAt:       payment.CreatedAt,
	}
	if payment.MatchedTransactionID != nil {
		id := payment.MatchedTransactionID.String()
		resp.MatchedTransactionID = &id
	}
	return resp
}
