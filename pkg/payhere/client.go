package payhere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
)

const (
	DefaultHTTPTimeout       = 20 * time.Second
	responseBodyReadLimit    = 64 * 1024
	genericChargeFailure     = "charge failed at gateway"
	malformedChargeResponse  = "malformed gateway response"
	idempotencyKeyHeaderName = "Idempotency-Key"
)

// Client talks to the gateway's merchant API. Every call goes through an
// http.Client with an explicit timeout.
type Client struct {
	httpClient *http.Client
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

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{httpClient: &http.Client{Timeout: DefaultHTTPTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return client
}

// Credential is the short-lived bearer token used for recurring charges. It
// is held in memory for one sweep run and never persisted.
type Credential struct {
	AccessToken string
	Expiry      time.Time
}

// AccessToken performs the client-credentials grant with the app id/secret.
// Any non-200 or transport failure comes back as a CodeDependency error,
// meaning billing cannot proceed this cycle. No retry happens here.
func (c *Client) AccessToken(ctx context.Context, cfg Config) (*Credential, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payhere client not configured")
	}
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payhere app credentials are required")
	}

	grant := clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		TokenURL:     cfg.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	token, err := grant.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("payhere token endpoint returned status %d", retrieveErr.Response.StatusCode))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request payhere access token")
	}
	if token.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payhere token endpoint returned an empty access token")
	}

	return &Credential{AccessToken: token.AccessToken, Expiry: token.Expiry}, nil
}

// ChargeRequest is one recurring charge against a stored token. PaymentID is
// supplied by the caller and is also sent as the Idempotency-Key header.
type ChargeRequest struct {
	Token     string
	Amount    decimal.Decimal
	Currency  string
	PaymentID string
}

// ChargeResult is the gateway's synchronous answer. Declines are reported with
// Success=false, never as an error.
type ChargeResult struct {
	Success          bool
	GatewayPaymentID string
	Message          string
	HTTPStatus       int
	Raw              json.RawMessage
}

type chargePayload struct {
	PaymentToken string       `json:"payment_token"`
	AmountDetail amountDetail `json:"amount_detail"`
	PaymentID    string       `json:"payment_id"`
}

type amountDetail struct {
	Currency    string `json:"currency"`
	GrossAmount string `json:"gross_amount"`
}

// Charge submits a recurring charge. Only transport failures (DNS, timeout,
// unreadable body) return an error, coded CodeDependency.
func (c *Client) Charge(ctx context.Context, cfg Config, accessToken string, req ChargeRequest) (*ChargeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payhere client not configured")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}
	if strings.TrimSpace(req.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment token is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}

	currency := req.Currency
	if currency == "" {
		currency = cfg.Currency
	}

	payload, err := json.Marshal(chargePayload{
		PaymentToken: req.Token,
		AmountDetail: amountDetail{Currency: currency, GrossAmount: FormatAmount(req.Amount)},
		PaymentID:    req.PaymentID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal charge request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ChargeURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	if req.PaymentID != "" {
		httpReq.Header.Set(idempotencyKeyHeaderName, req.PaymentID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute charge request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read charge response")
	}

	return interpretCharge(resp.StatusCode, body), nil
}

func interpretCharge(statusCode int, body []byte) *ChargeResult {
	result := &ChargeResult{HTTPStatus: statusCode, Raw: rawJSON(body)}

	var parsed map[string]any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&parsed); err != nil {
		if statusCode == http.StatusOK {
			result.Message = malformedChargeResponse
		} else {
			result.Message = fmt.Sprintf("gateway returned status %d", statusCode)
		}
		return result
	}

	result.Message = firstString(parsed, "message", "msg")
	data, _ := parsed["data"].(map[string]any)

	result.GatewayPaymentID = firstString(parsed, "payment_id")
	if result.GatewayPaymentID == "" && data != nil {
		result.GatewayPaymentID = firstString(data, "payment_id")
	}

	approved := statusCode == http.StatusOK && statusApproved(parsed["status"])
	if approved && data != nil {
		if code := firstString(data, "status_code"); code != "" && code != StatusSuccess {
			approved = false
		}
	}
	result.Success = approved

	if !result.Success && result.Message == "" {
		if statusCode != http.StatusOK {
			result.Message = fmt.Sprintf("gateway returned status %d", statusCode)
		} else {
			result.Message = genericChargeFailure
		}
	}
	return result
}

func statusApproved(value any) bool {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		return err == nil && n > 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "2", "success", "approved":
			return true
		}
	case bool:
		return v
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func rawJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"body": string(trimmed)})
	return wrapped
}
