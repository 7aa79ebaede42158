package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paypalTestSecret = "pp_webhook_secret"

func paypalHeaders(body []byte) http.Header {
	h := http.Header{}
	h.Set(SignatureHeaderPayPal, hmacSHA256Base64(paypalTestSecret, body))
	return h
}

func newPayPalTestServer(t *testing.T, orderHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client_id", user)
		assert.Equal(t, "client_secret", pass)
		w.Write([]byte(`{"access_token":"token123","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/v2/checkout/orders", orderHandler)
	mux.HandleFunc("/v2/checkout/orders/", orderHandler)
	return httptest.NewServer(mux)
}

func TestPayPalCreateOrder(t *testing.T) {
	var gotPayload map[string]interface{}
	server := newPayPalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`{
			"id": "5O190127TN364715T",
			"status": "CREATED",
			"links": [
				{"href": "https://api-m.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T", "rel": "self"},
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", "rel": "approve"}
			]
		}`))
	})
	defer server.Close()

	a := NewPayPalAdapter("client_id", "client_secret", paypalTestSecret, server.URL)
	result, err := a.CreateOrder(context.Background(), CreateOrderRequest{
		OrderID:  "paypal_1_abc",
		Amount:   999,
		Currency: "USD",
	})
	require.NoError(t, err)

	assert.Equal(t, "5O190127TN364715T", result.ProviderOrderID)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", result.RedirectURL)

	units := gotPayload["purchase_units"].([]interface{})
	unit := units[0].(map[string]interface{})
	assert.Equal(t, "paypal_1_abc", unit["reference_id"])
	assert.Equal(t, "paypal_1_abc", unit["custom_id"])
	amount := unit["amount"].(map[string]interface{})
	assert.Equal(t, "9.99", amount["value"])
	assert.Equal(t, "USD", amount["currency_code"])
}

func TestPayPalCreateOrderMissingCredentials(t *testing.T) {
	a := NewPayPalAdapter("", "", paypalTestSecret, "https://api-m.sandbox.paypal.com")
	_, err := a.CreateOrder(context.Background(), CreateOrderRequest{OrderID: "paypal_1_abc", Amount: 100, Currency: "USD"})
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestPayPalVerifyWebhookCaptureCompleted(t *testing.T) {
	a := NewPayPalAdapter("client_id", "client_secret", paypalTestSecret, "https://api-m.sandbox.paypal.com")
	body := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "3C679366HH908993F",
			"status": "COMPLETED",
			"custom_id": "paypal_1_abc",
			"supplementary_data": {"related_ids": {"order_id": "5O190127TN364715T"}}
		}
	}`)

	event, err := a.VerifyWebhook(body, paypalHeaders(body))
	require.NoError(t, err)
	// Capture events: resource.id is the payment, related_ids holds the order.
	assert.Equal(t, "5O190127TN364715T", event.ProviderOrderID)
	assert.Equal(t, "3C679366HH908993F", event.ProviderPaymentID)
	assert.Equal(t, "paypal_1_abc", event.MerchantOrderID)
	assert.Equal(t, StatusPaid, event.MappedStatus)
}

func TestPayPalVerifyWebhookOrderLevelEvent(t *testing.T) {
	a := NewPayPalAdapter("client_id", "client_secret", paypalTestSecret, "https://api-m.sandbox.paypal.com")
	body := []byte(`{
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {
			"id": "5O190127TN364715T",
			"status": "APPROVED",
			"purchase_units": [{"reference_id": "paypal_1_abc"}]
		}
	}`)

	event, err := a.VerifyWebhook(body, paypalHeaders(body))
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", event.ProviderOrderID)
	assert.Empty(t, event.ProviderPaymentID)
	assert.Equal(t, "paypal_1_abc", event.MerchantOrderID)
	assert.Equal(t, StatusPending, event.MappedStatus)
}

func TestPayPalVerifyWebhookBadSignature(t *testing.T) {
	a := NewPayPalAdapter("client_id", "client_secret", paypalTestSecret, "https://api-m.sandbox.paypal.com")
	body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	headers := http.Header{}
	headers.Set(SignatureHeaderPayPal, "bm90IGEgcmVhbCBzaWduYXR1cmU=")
	_, err := a.VerifyWebhook(body, headers)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "signature mismatch", verr.Reason)
}

func TestPayPalFetchOrderStatus(t *testing.T) {
	server := newPayPalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"5O190127TN364715T","status":"COMPLETED"}`))
	})
	defer server.Close()

	a := NewPayPalAdapter("client_id", "client_secret", paypalTestSecret, server.URL)
	status, err := a.FetchOrderStatus(context.Background(), "5O190127TN364715T", "paypal_1_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)
}

func TestMapPayPalEvent(t *testing.T) {
	assert.Equal(t, StatusPaid, mapPayPalEvent("PAYMENT.CAPTURE.COMPLETED", "COMPLETED"))
	assert.Equal(t, StatusPaid, mapPayPalEvent("CHECKOUT.ORDER.COMPLETED", ""))
	assert.Equal(t, StatusFailed, mapPayPalEvent("PAYMENT.CAPTURE.DENIED", "DENIED"))
	assert.Equal(t, StatusFailed, mapPayPalEvent("PAYMENT.CAPTURE.REFUNDED", ""))
	assert.Equal(t, StatusPending, mapPayPalEvent("CHECKOUT.ORDER.APPROVED", "APPROVED"))
	assert.Equal(t, StatusPaid, mapPayPalEvent("SOMETHING.ELSE", "COMPLETED"))
	assert.Equal(t, StatusPending, mapPayPalEvent("", ""))
}
