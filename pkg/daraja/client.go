package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/netpoint-soft/cybercafe-backend/pkg/config"
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"

	transactionTypePayBill = "CustomerPayBillOnline"

	responseBodyReadLimit int64 = 1 << 20

	defaultTokenTTL = 3600 * time.Second
)

var (
	errCredentialsRequired = errors.New("daraja consumer key and secret are required")
	errShortCodeRequired   = errors.New("daraja shortcode and passkey are required")
)

// Client talks to the Safaricom Daraja API: OAuth token exchange, STK push
// initiation and status queries. Provider-side rejections are returned as
// result values, not errors; error returns are reserved for misuse.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	consumerKey string
	secret      string
	shortCode   string
	passkey     string
	callbackURL string

	now func() time.Time

	mu           sync.Mutex
	cachedToken  string
	tokenExpires time.Time
	safetyMargin time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a Daraja client from configuration.
func NewClient(cfg config.DarajaConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" || strings.TrimSpace(cfg.Passkey) == "" {
		return nil, errShortCodeRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		consumerKey:  strings.TrimSpace(cfg.ConsumerKey),
		secret:       strings.TrimSpace(cfg.ConsumerSecret),
		shortCode:    strings.TrimSpace(cfg.ShortCode),
		passkey:      strings.TrimSpace(cfg.Passkey),
		callbackURL:  strings.TrimSpace(cfg.CallbackURL),
		now:          time.Now,
		safetyMargin: cfg.TokenSafetyMargin,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		client.baseURL = "https://sandbox.safaricom.co.ke"
	}

	return client, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken exchanges the configured credentials for a bearer token.
// Tokens are cached until shortly before the provider-reported expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.cachedToken != "" && c.now().Before(c.tokenExpires) {
		token := c.cachedToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("building oauth request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.secret))
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return "", fmt.Errorf("reading oauth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("oauth returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding oauth response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", errors.New("oauth response missing access_token")
	}

	ttl := defaultTokenTTL
	if parsed.ExpiresIn != "" {
		if secs, perr := time.ParseDuration(parsed.ExpiresIn + "s"); perr == nil && secs > 0 {
			ttl = secs
		}
	}
	margin := c.safetyMargin
	if margin <= 0 || margin >= ttl {
		margin = time.Minute
	}
	if margin >= ttl {
		margin = 0
	}

	c.mu.Lock()
	c.cachedToken = parsed.AccessToken
	c.tokenExpires = c.now().Add(ttl - margin)
	c.mu.Unlock()

	return parsed.AccessToken, nil
}

// password derives the STK password: base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

// PushResult reports the provider's answer to an STK push. Failure is a
// value, not an error: Success=false carries the provider or transport
// failure text in Error.
type PushResult struct {
	Success             bool
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
	Error               string
}

// InitiatePush submits an STK push to the payer's phone. The amount is
// truncated to whole currency units as the provider requires.
func (c *Client) InitiatePush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference, description string) PushResult {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return PushResult{Success: false, Error: fmt.Sprintf("access token: %v", err)}
	}

	timestamp := c.now().Format(timestampLayout)
	if description == "" {
		description = "Payment"
	}

	payload := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionTypePayBill,
		Amount:            amount.IntPart(),
		PartyA:            phoneNumber,
		PartyB:            c.shortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.callbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	var parsed stkPushResponse
	if err := c.postJSON(ctx, stkPushPath, token, payload, &parsed); err != nil {
		return PushResult{Success: false, Error: err.Error()}
	}

	if parsed.ResponseCode != "0" {
		reason := parsed.ResponseDescription
		if reason == "" {
			reason = parsed.ErrorMessage
		}
		return PushResult{
			Success:             false,
			ResponseCode:        parsed.ResponseCode,
			ResponseDescription: parsed.ResponseDescription,
			Error:               reason,
		}
	}

	return PushResult{
		Success:             true,
		CheckoutRequestID:   parsed.CheckoutRequestID,
		MerchantRequestID:   parsed.MerchantRequestID,
		ResponseCode:        parsed.ResponseCode,
		ResponseDescription: parsed.ResponseDescription,
		CustomerMessage:     parsed.CustomerMessage,
	}
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryResult carries the provider's view of a previously initiated push.
type QueryResult struct {
	Success             bool
	ResponseCode        string
	ResponseDescription string
	ResultCode          string
	ResultDesc          string
	Error               string
}

type stkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorMessage        string `json:"errorMessage"`
}

// QueryStatus asks the provider for the final status of a push, used as a
// reconciliation fallback when no callback ever arrives.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) QueryResult {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return QueryResult{Success: false, Error: fmt.Sprintf("access token: %v", err)}
	}

	timestamp := c.now().Format(timestampLayout)
	payload := stkQueryRequest{
		BusinessShortCode: c.shortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var parsed stkQueryResponse
	if err := c.postJSON(ctx, stkQueryPath, token, payload, &parsed); err != nil {
		return QueryResult{Success: false, Error: err.Error()}
	}

	return QueryResult{
		Success:             true,
		ResponseCode:        parsed.ResponseCode,
		ResponseDescription: parsed.ResponseDescription,
		ResultCode:          parsed.ResultCode,
		ResultDesc:          parsed.ResultDesc,
	}
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
