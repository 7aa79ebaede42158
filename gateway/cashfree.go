package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ganeshai/ganesh-ai/models"
)

// Cashfree webhook headers. The signature is HMAC-SHA256 over
// timestamp + raw body, base64 encoded.
const (
	SignatureHeaderCashfree = "x-webhook-signature"
	TimestampHeaderCashfree = "x-webhook-timestamp"
)

const cashfreeAPIVersion = "2022-09-01"

// CashfreeAdapter talks to the Cashfree PG REST API directly. Cashfree accepts
// our own order id as the merchant order id, so correlation needs no separate
// reference field.
type CashfreeAdapter struct {
	appID      string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewCashfreeAdapter builds an adapter. baseURL selects sandbox or production
// (https://sandbox.cashfree.com or https://api.cashfree.com).
func NewCashfreeAdapter(appID, secretKey, baseURL string) *CashfreeAdapter {
	return &CashfreeAdapter{
		appID:      appID,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *CashfreeAdapter) Provider() string { return models.ProviderCashfree }

func (a *CashfreeAdapter) authHeaders(req *http.Request) {
	req.Header.Set("X-Client-Id", a.appID)
	req.Header.Set("X-Client-Secret", a.secretKey)
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// CreateOrder creates a Cashfree PG order carrying our order id verbatim.
func (a *CashfreeAdapter) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusBadRequest, Body: err.Error()}
	}
	if a.appID == "" || a.secretKey == "" {
		return nil, &AuthError{Provider: a.Provider(), Message: "missing app id or secret key"}
	}

	payload := map[string]interface{}{
		"order_id":       req.OrderID,
		"order_amount":   json.Number(formatMajor(req.Amount)),
		"order_currency": req.Currency,
		"customer_details": map[string]string{
			"customer_id":    req.Customer.ID,
			"customer_name":  req.Customer.Name,
			"customer_email": req.Customer.Email,
			"customer_phone": req.Customer.Phone,
		},
		"order_meta": map[string]string{
			"return_url": req.ReturnURL,
			"notify_url": req.NotifyURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/pg/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.authHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusGatewayTimeout, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Provider: a.Provider(), Message: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		CfOrderID        json.Number `json:"cf_order_id"`
		OrderID          string      `json:"order_id"`
		PaymentSessionID string      `json:"payment_session_id"`
		PaymentLink      string      `json:"payment_link"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return &CreateOrderResult{
		ProviderOrderID: result.CfOrderID.String(),
		RedirectURL:     result.PaymentLink,
		ClientPayload: map[string]interface{}{
			"payment_session_id": result.PaymentSessionID,
			"order_id":           result.OrderID,
		},
		RawResponse: string(respBody),
	}, nil
}

// cashfreeWebhook mirrors the slice of Cashfree's webhook envelope we read.
type cashfreeWebhook struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			CfOrderID json.Number `json:"cf_order_id"`
			OrderID   string      `json:"order_id"`
		} `json:"order"`
		Payment struct {
			CfPaymentID   json.Number `json:"cf_payment_id"`
			PaymentStatus string      `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// VerifyWebhook checks the base64 HMAC over timestamp+body before parsing.
func (a *CashfreeAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*NormalizedEvent, error) {
	signature := headers.Get(SignatureHeaderCashfree)
	timestamp := headers.Get(TimestampHeaderCashfree)
	if signature == "" || timestamp == "" {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "missing signature or timestamp header"}
	}
	signed := append([]byte(timestamp), rawBody...)
	expected := hmacSHA256Base64(a.secretKey, signed)
	if !signaturesEqual(expected, signature) {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "signature mismatch"}
	}

	var payload cashfreeWebhook
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "malformed payload"}
	}

	status := payload.Data.Payment.PaymentStatus
	if status == "" {
		status = payload.Type
	}

	return &NormalizedEvent{
		ProviderOrderID:   payload.Data.Order.CfOrderID.String(),
		ProviderPaymentID: payload.Data.Payment.CfPaymentID.String(),
		MerchantOrderID:   payload.Data.Order.OrderID,
		ExternalStatus:    status,
		MappedStatus:      mapCashfreeStatus(status),
	}, nil
}

// FetchOrderStatus queries the order by our merchant order id, which is what
// Cashfree keys its order-get endpoint on.
func (a *CashfreeAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/pg/orders/"+merchantOrderID, nil)
	if err != nil {
		return "", err
	}
	a.authHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: http.StatusGatewayTimeout, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		OrderStatus string `json:"order_status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode order status: %w", err)
	}
	return mapCashfreeStatus(result.OrderStatus), nil
}

func mapCashfreeStatus(status string) string {
	switch status {
	case "PAID", "SUCCESS", "PAYMENT_SUCCESS_WEBHOOK":
		return StatusPaid
	case "FAILED", "CANCELLED", "EXPIRED", "USER_DROPPED", "TERMINATED", "PAYMENT_FAILED_WEBHOOK":
		return StatusFailed
	default:
		return StatusPending
	}
}
