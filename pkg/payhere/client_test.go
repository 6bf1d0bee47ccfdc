package payhere

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestAccessTokenClientCredentialsGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchant/v1/oauth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "app-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"bearer-123","token_type":"bearer","expires_in":599,"scope":"SANDBOX"}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL

	cred, err := NewClient().AccessToken(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "bearer-123", cred.AccessToken)
	assert.False(t, cred.Expiry.IsZero())
}

func TestAccessTokenNon200IsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL

	cred, err := NewClient().AccessToken(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, cred)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestAccessTokenRequiresAppCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.AppID = ""
	_, err := NewClient().AccessToken(context.Background(), cfg)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}

func TestChargeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchant/v1/payment/charge", r.URL.Path)
		assert.Equal(t, "Bearer bearer-123", r.Header.Get("Authorization"))
		assert.Equal(t, "REC_c_p_1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "tok_abc", body["payment_token"])
		assert.Equal(t, "REC_c_p_1", body["payment_id"])
		detail, _ := body["amount_detail"].(map[string]any)
		assert.Equal(t, "LKR", detail["currency"])
		assert.Equal(t, "50000.00", detail["gross_amount"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":1,"msg":"Automatic payment charged successfully","data":{"order_id":"REC_c_p_1","payment_id":320025071278,"status_code":2}}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL

	result, err := NewClient().Charge(context.Background(), cfg, "bearer-123", ChargeRequest{
		Token:     "tok_abc",
		Amount:    decimal.NewFromInt(50000),
		PaymentID: "REC_c_p_1",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "320025071278", result.GatewayPaymentID)
	assert.Equal(t, "Automatic payment charged successfully", result.Message)
	assert.True(t, json.Valid(result.Raw))
}

func TestChargeTopLevelPaymentID(t *testing.T) {
	result := interpretCharge(http.StatusOK, []byte(`{"status":"success","payment_id":"PHR123"}`))
	assert.True(t, result.Success)
	assert.Equal(t, "PHR123", result.GatewayPaymentID)
}

func TestChargeDeclinesAreNotErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "declined status", status: http.StatusOK, body: `{"status":-1,"msg":"Insufficient funds"}`, message: "Insufficient funds"},
		{name: "failed status code", status: http.StatusOK, body: `{"status":1,"message":"Card expired","data":{"status_code":-2}}`, message: "Card expired"},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, message: "gateway returned status 500"},
		{name: "bad request with message", status: http.StatusBadRequest, body: `{"status":-1,"message":"Invalid token"}`, message: "Invalid token"},
		{name: "malformed", status: http.StatusOK, body: `<html>`, message: "malformed gateway response"},
		{name: "no message", status: http.StatusOK, body: `{"status":0}`, message: "charge failed at gateway"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			cfg := testConfig()
			cfg.BaseURL = server.URL
			result, err := NewClient().Charge(context.Background(), cfg, "bearer", ChargeRequest{Token: "tok", Amount: decimal.NewFromInt(1)})
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tc.message, result.Message)
			assert.Equal(t, tc.status, result.HTTPStatus)
			assert.True(t, json.Valid(result.Raw))
		})
	}
}

func TestChargeTransportErrorPropagates(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: lookup sandbox.payhere.lk: no such host")
	})}

	result, err := NewClient(WithHTTPClient(httpClient)).Charge(context.Background(), testConfig(), "bearer", ChargeRequest{Token: "tok", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestChargeTimeoutPropagates(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.BaseURL = server.URL

	_, err := NewClient(WithTimeout(50*time.Millisecond)).Charge(context.Background(), cfg, "bearer", ChargeRequest{Token: "tok", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestChargeValidatesInput(t *testing.T) {
	client := NewClient()
	_, err := client.Charge(context.Background(), testConfig(), "", ChargeRequest{Token: "tok", Amount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = client.Charge(context.Background(), testConfig(), "bearer", ChargeRequest{Token: "tok", Amount: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
