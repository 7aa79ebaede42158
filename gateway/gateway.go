package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Mapped webhook statuses shared by all providers.
const (
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Customer identifies the paying user to the gateway.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// CreateOrderRequest is the provider-agnostic order creation request. OrderID
// is our idempotency key; every adapter must embed it so it round-trips
// through the provider's webhook.
type CreateOrderRequest struct {
	OrderID   string
	Amount    int64 // minor units, must be positive
	Currency  string
	Customer  Customer
	ReturnURL string
	NotifyURL string
}

// CreateOrderResult carries whatever the client needs to complete payment:
// either a redirect URL or provider SDK init parameters.
type CreateOrderResult struct {
	ProviderOrderID string
	RedirectURL     string
	ClientPayload   map[string]interface{}
	RawResponse     string
}

// NormalizedEvent is a verified webhook reduced to the fields the reconciler
// needs. MerchantOrderID is our order id when the provider echoes it back.
type NormalizedEvent struct {
	ProviderOrderID   string
	ProviderPaymentID string
	MerchantOrderID   string
	ExternalStatus    string
	MappedStatus      string // paid, failed, pending
}

// Adapter is the common contract every payment gateway implements. CreateOrder
// and FetchOrderStatus are the only operations with side effects (outbound
// HTTP); VerifyWebhook is pure apart from the HMAC computation.
type Adapter interface {
	Provider() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)
	VerifyWebhook(rawBody []byte, headers http.Header) (*NormalizedEvent, error)
	FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error)
}

// AuthError means credentials are absent or were rejected by the provider.
// Not retryable by the user; an operator has to fix the configuration.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: gateway auth failed: %s", e.Provider, e.Message)
}

// RequestError is any non-2xx answer from the provider. The raw body is kept
// for diagnostics and ends up in the order's RawPayload.
type RequestError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: gateway request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// VerificationError means a webhook signature was missing or did not match.
// The event must be dropped without touching any state.
type VerificationError struct {
	Provider string
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: webhook verification failed: %s", e.Provider, e.Reason)
}

// validateCreate checks the provider-independent constraints.
func validateCreate(req CreateOrderRequest) error {
	if req.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	if req.Amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %d", req.Amount)
	}
	if len(req.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code, got %q", req.Currency)
	}
	return nil
}

// hmacSHA256Hex returns the hex-encoded HMAC-SHA256 of data.
func hmacSHA256Hex(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// hmacSHA256Base64 returns the base64-encoded HMAC-SHA256 of data.
func hmacSHA256Base64(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// transportStatus classifies an outbound-call error. Timeouts map to 504 so
// callers can tell "unconfirmed, resolve later" from "rejected"; anything else
// is 502. Some SDKs flatten the transport error into a plain string, so the
// textual timeout markers are checked as a fallback.
func transportStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "context deadline exceeded") {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// signaturesEqual compares two encoded signatures in constant time.
func signaturesEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// formatMajor renders a minor-unit amount as a decimal string ("500" -> "5.00")
// using integer math only. Providers that want a decimal number on the wire get
// this string; the ledger itself never leaves minor units.
func formatMajor(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
