package daraja

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 500.00},
					{"Name": "MpesaReceiptNumber", "Value": "QAB1234XYZ"},
					{"Name": "TransactionDate", "Value": 20191219102115},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

const failureCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user."
		}
	}
}`

func TestExtractCallbackSuccess(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := ExtractCallback([]byte(successCallback), now)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if !data.IsSuccess() {
		t.Fatal("expected success result")
	}
	if data.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout id %q", data.CheckoutRequestID)
	}
	if !data.HasAmount || !data.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected amount %s (has=%v)", data.Amount, data.HasAmount)
	}
	if data.ReceiptNumber != "QAB1234XYZ" {
		t.Fatalf("unexpected receipt %q", data.ReceiptNumber)
	}
	if data.PhoneNumber != "254712345678" {
		t.Fatalf("unexpected phone %q", data.PhoneNumber)
	}

	wantDate := time.Date(2019, 12, 19, 10, 21, 15, 0, time.UTC)
	if !data.TransactionDate.Equal(wantDate) {
		t.Fatalf("unexpected transaction date %v", data.TransactionDate)
	}
}

func TestExtractCallbackFailureResult(t *testing.T) {
	now := time.Now()
	data, err := ExtractCallback([]byte(failureCallback), now)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if data.IsSuccess() {
		t.Fatal("expected failure result")
	}
	if data.ResultCode != 1032 {
		t.Fatalf("unexpected result code %d", data.ResultCode)
	}
	if data.HasAmount {
		t.Fatal("failure callback should not carry an amount")
	}
	// date falls back to ingestion time
	if !data.TransactionDate.Equal(now) {
		t.Fatalf("expected ingestion-time fallback, got %v", data.TransactionDate)
	}
}

func TestExtractCallbackBadDateFallsBack(t *testing.T) {
	payload := `{
		"Body": {"stkCallback": {
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"ResultDesc": "ok",
			"CallbackMetadata": {"Item": [
				{"Name": "TransactionDate", "Value": "not-a-date"},
				{"Name": "MpesaReceiptNumber", "Value": "QXX0001"}
			]}
		}}
	}`
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	data, err := ExtractCallback([]byte(payload), now)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !data.TransactionDate.Equal(now) {
		t.Fatalf("expected fallback to ingestion time, got %v", data.TransactionDate)
	}
}

func TestExtractCallbackMalformed(t *testing.T) {
	if _, err := ExtractCallback([]byte(`not json`), time.Now()); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ExtractCallback([]byte(`{"Body":{}}`), time.Now()); err == nil {
		t.Fatal("expected missing body error")
	}
}

func TestExtractCallbackStringAmount(t *testing.T) {
	payload := `{
		"Body": {"stkCallback": {
			"CheckoutRequestID": "ws_CO_2",
			"ResultCode": 0,
			"ResultDesc": "ok",
			"CallbackMetadata": {"Item": [
				{"Name": "Amount", "Value": "250.50"}
			]}
		}}
	}`
	data, err := ExtractCallback([]byte(payload), time.Now())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !data.HasAmount || data.Amount.StringFixed(2) != "250.50" {
		t.Fatalf("unexpected amount %s", data.Amount)
	}
}
