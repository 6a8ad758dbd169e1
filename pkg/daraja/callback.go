package daraja

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CallbackEnvelope mirrors the provider's nested STK result payload.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// CallbackData is the flattened, typed view of one callback. Amount and the
// receipt fields are only populated on success results.
type CallbackData struct {
	ResultCode        int
	ResultDesc        string
	MerchantRequestID string
	CheckoutRequestID string
	Amount            decimal.Decimal
	HasAmount         bool
	ReceiptNumber     string
	TransactionDate   time.Time
	PhoneNumber       string
	Raw               json.RawMessage
}

// IsSuccess reports whether the provider marked the push as completed.
func (c CallbackData) IsSuccess() bool {
	return c.ResultCode == 0
}

// ExtractCallback parses the raw webhook body into a flat record. The
// transaction date falls back to now when missing or unparseable since it is
// informational only.
func ExtractCallback(raw []byte, now time.Time) (*CallbackData, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding callback payload: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" && cb.MerchantRequestID == "" && cb.ResultDesc == "" {
		return nil, errors.New("callback payload missing stkCallback body")
	}

	data := &CallbackData{
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		TransactionDate:   now,
		Raw:               json.RawMessage(raw),
	}

	if cb.CallbackMetadata == nil {
		return data, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if amount, ok := decimalFromRaw(item.Value); ok {
				data.Amount = amount
				data.HasAmount = true
			}
		case "MpesaReceiptNumber":
			data.ReceiptNumber = stringFromRaw(item.Value)
		case "TransactionDate":
			if parsed, ok := parseTransactionDate(stringFromRaw(item.Value)); ok {
				data.TransactionDate = parsed
			}
		case "PhoneNumber":
			data.PhoneNumber = stringFromRaw(item.Value)
		}
	}

	return data, nil
}

// parseTransactionDate handles the provider's numeric YYYYMMDDHHmmss format.
func parseTransactionDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if len(value) != len(timestampLayout) {
		return time.Time{}, false
	}
	parsed, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func decimalFromRaw(raw json.RawMessage) (decimal.Decimal, bool) {
	s := stringFromRaw(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return parsed, true
}

// stringFromRaw renders a JSON scalar as its string form. The provider mixes
// numbers and strings for the same fields across payload versions.
func stringFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		return strconv.FormatFloat(asFloat, 'f', -1, 64)
	}
	return strings.Trim(string(raw), `"`)
}
