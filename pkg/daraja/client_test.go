package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.DarajaConfig {
	return config.DarajaConfig{
		BaseURL:        "http://daraja.test",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://backend.test/api/v1/webhooks/daraja",
		HTTPTimeout:    5 * time.Second,
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestAccessTokenBasicAuthAndCaching(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if !strings.Contains(req.URL.String(), "/oauth/v1/generate") {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if got := req.Header.Get("Authorization"); got != expected {
			t.Fatalf("unexpected authorization header %q", got)
		}
		return jsonResponse(http.StatusOK, `{"access_token":"tok-1","expires_in":"3600"}`), nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	token, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("unexpected token %q", token)
	}

	// second call must come from the cache
	if _, err := client.AccessToken(context.Background()); err != nil {
		t.Fatalf("cached access token: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one oauth call, got %d", calls)
	}
}

func TestAccessTokenMissingField(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.AccessToken(context.Background()); err == nil {
		t.Fatal("expected error for missing access_token")
	}
}

func TestInitiatePushBuildsSignedRequest(t *testing.T) {
	fixedNow := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	var captured map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.String(), "/oauth/") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok-1","expires_in":"3600"}`), nil
		}
		if !strings.Contains(req.URL.String(), "/mpesa/stkpush/v1/processrequest") {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("unexpected bearer header %q", got)
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{
			"MerchantRequestID":"mr-1",
			"CheckoutRequestID":"ws_CO_1",
			"ResponseCode":"0",
			"ResponseDescription":"Success. Request accepted for processing",
			"CustomerMessage":"Success. Request accepted for processing"
		}`), nil
	})

	client, err := NewClient(testConfig(),
		WithHTTPClient(&http.Client{Transport: rt}),
		WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result := client.InitiatePush(context.Background(), "254712345678", decimal.NewFromFloat(150.75), "TXN-42", "Cafe payment")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.CheckoutRequestID != "ws_CO_1" || result.MerchantRequestID != "mr-1" {
		t.Fatalf("unexpected identifiers %+v", result)
	}

	if captured["Timestamp"] != "20260314150926" {
		t.Fatalf("unexpected timestamp %v", captured["Timestamp"])
	}
	expectedPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20260314150926"))
	if captured["Password"] != expectedPassword {
		t.Fatalf("unexpected password %v", captured["Password"])
	}
	if captured["TransactionType"] != "CustomerPayBillOnline" {
		t.Fatalf("unexpected transaction type %v", captured["TransactionType"])
	}
	// provider requires whole units
	if captured["Amount"] != float64(150) {
		t.Fatalf("expected truncated amount 150, got %v", captured["Amount"])
	}
	if captured["PartyA"] != "254712345678" || captured["PartyB"] != "174379" {
		t.Fatalf("unexpected parties %v %v", captured["PartyA"], captured["PartyB"])
	}
	if captured["AccountReference"] != "TXN-42" {
		t.Fatalf("unexpected account reference %v", captured["AccountReference"])
	}
}

func TestInitiatePushProviderRejection(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.String(), "/oauth/") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok-1"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"ResponseCode":"1","ResponseDescription":"Insufficient funds"}`), nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result := client.InitiatePush(context.Background(), "254712345678", decimal.NewFromInt(100), "TXN-1", "")
	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Error != "Insufficient funds" {
		t.Fatalf("unexpected error %q", result.Error)
	}
	if result.ResponseCode != "1" {
		t.Fatalf("unexpected response code %q", result.ResponseCode)
	}
}

func TestInitiatePushTransportFailureIsValue(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.String(), "/oauth/") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok-1"}`), nil
		}
		return jsonResponse(http.StatusBadGateway, `upstream unavailable`), nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result := client.InitiatePush(context.Background(), "254712345678", decimal.NewFromInt(100), "TXN-1", "")
	if result.Success {
		t.Fatal("expected transport failure result")
	}
	if !strings.Contains(result.Error, "status 502") {
		t.Fatalf("unexpected error %q", result.Error)
	}
}

func TestQueryStatus(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.String(), "/oauth/") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok-1"}`), nil
		}
		if !strings.Contains(req.URL.String(), "/mpesa/stkpushquery/v1/query") {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		body, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(body), `"CheckoutRequestID":"ws_CO_9"`) {
			t.Fatalf("missing checkout id in body: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`), nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result := client.QueryStatus(context.Background(), "ws_CO_9")
	if !result.Success || result.ResultCode != "0" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.ConsumerSecret = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected credentials error")
	}

	cfg = testConfig()
	cfg.Passkey = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected shortcode/passkey error")
	}
}
