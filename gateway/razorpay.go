package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ganeshai/ganesh-ai/models"
	razorpay "github.com/razorpay/razorpay-go"
)

// SignatureHeaderRazorpay is the header Razorpay signs webhook deliveries with.
const SignatureHeaderRazorpay = "X-Razorpay-Signature"

// RazorpayAdapter drives the Razorpay Orders API through the official SDK.
// Webhook signatures are HMAC-SHA256 over the raw body, hex encoded.
type RazorpayAdapter struct {
	keyID         string
	keySecret     string
	webhookSecret string
	client        *razorpay.Client
}

// NewRazorpayAdapter builds an adapter from the configured credentials.
func NewRazorpayAdapter(keyID, keySecret, webhookSecret string) *RazorpayAdapter {
	return &RazorpayAdapter{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        razorpay.NewClient(keyID, keySecret),
	}
}

func (a *RazorpayAdapter) Provider() string { return models.ProviderRazorpay }

// CreateOrder creates a Razorpay order. The order id is planted both in the
// receipt and in notes so the webhook payload echoes it back.
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusBadRequest, Body: err.Error()}
	}
	if a.keyID == "" || a.keySecret == "" {
		return nil, &AuthError{Provider: a.Provider(), Message: "missing key id or secret"}
	}

	orderData := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.OrderID,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"order_id":    req.OrderID,
			"customer_id": req.Customer.ID,
		},
	}

	rzOrder, err := a.client.Order.Create(orderData, nil)
	if err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: transportStatus(err), Body: err.Error()}
	}

	raw, _ := json.Marshal(rzOrder)
	providerOrderID := fmt.Sprintf("%v", rzOrder["id"])

	return &CreateOrderResult{
		ProviderOrderID: providerOrderID,
		ClientPayload: map[string]interface{}{
			"key":               a.keyID,
			"razorpay_order_id": providerOrderID,
			"amount":            req.Amount,
			"currency":          req.Currency,
			"name":              req.Customer.Name,
			"email":             req.Customer.Email,
		},
		RawResponse: string(raw),
	}, nil
}

// razorpayWebhook mirrors the slice of Razorpay's webhook envelope we read.
type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Status  string            `json:"status"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifyWebhook recomputes the hex HMAC over the raw body and only then parses
// the payload. A forged body never influences control flow.
func (a *RazorpayAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*NormalizedEvent, error) {
	signature := headers.Get(SignatureHeaderRazorpay)
	if signature == "" {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "missing signature header"}
	}
	expected := hmacSHA256Hex(a.webhookSecret, rawBody)
	if !signaturesEqual(expected, signature) {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "signature mismatch"}
	}

	var payload razorpayWebhook
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "malformed payload"}
	}

	entity := payload.Payload.Payment.Entity
	return &NormalizedEvent{
		ProviderOrderID:   entity.OrderID,
		ProviderPaymentID: entity.ID,
		MerchantOrderID:   entity.Notes["order_id"],
		ExternalStatus:    entity.Status,
		MappedStatus:      mapRazorpayStatus(entity.Status),
	}, nil
}

// FetchOrderStatus looks the order up for manual reconciliation of ambiguous
// orders (e.g. a timed-out create call).
func (a *RazorpayAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	if providerOrderID == "" {
		return "", &RequestError{Provider: a.Provider(), StatusCode: http.StatusBadRequest, Body: "no provider order id recorded"}
	}
	rzOrder, err := a.client.Order.Fetch(providerOrderID, nil, nil)
	if err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: transportStatus(err), Body: err.Error()}
	}
	status := fmt.Sprintf("%v", rzOrder["status"])
	if status == "paid" {
		return StatusPaid, nil
	}
	return StatusPending, nil
}

func mapRazorpayStatus(status string) string {
	switch status {
	case "captured":
		return StatusPaid
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}
