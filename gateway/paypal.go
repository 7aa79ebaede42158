package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ganeshai/ganesh-ai/models"
)

// SignatureHeaderPayPal carries the base64 HMAC signature on webhook deliveries.
const SignatureHeaderPayPal = "Paypal-Transmission-Sig"

// PayPalAdapter drives the PayPal Checkout Orders v2 API. Our order id travels
// in purchase_units[0].reference_id, which webhook payloads echo back.
type PayPalAdapter struct {
	clientID      string
	clientSecret  string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	// lookupClient is tighter than httpClient: the webhook handler must answer
	// the provider quickly, so the secondary order lookup gets a hard cap.
	lookupClient *http.Client
}

// NewPayPalAdapter builds an adapter. baseURL selects sandbox or live
// (https://api-m.sandbox.paypal.com or https://api-m.paypal.com).
func NewPayPalAdapter(clientID, clientSecret, webhookSecret, baseURL string) *PayPalAdapter {
	return &PayPalAdapter{
		clientID:      clientID,
		clientSecret:  clientSecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		lookupClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (a *PayPalAdapter) Provider() string { return models.ProviderPayPal }

// accessToken exchanges client credentials for a bearer token.
func (a *PayPalAdapter) accessToken(ctx context.Context) (string, error) {
	if a.clientID == "" || a.clientSecret == "" {
		return "", &AuthError{Provider: a.Provider(), Message: "missing client id or secret"}
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(a.clientID, a.clientSecret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: http.StatusGatewayTimeout, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return "", &AuthError{Provider: a.Provider(), Message: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBody, &token); err != nil || token.AccessToken == "" {
		return "", &AuthError{Provider: a.Provider(), Message: "no access token in response"}
	}
	return token.AccessToken, nil
}

// CreateOrder creates a CAPTURE-intent checkout order and returns the approve
// link the user is redirected to.
func (a *PayPalAdapter) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusBadRequest, Body: err.Error()}
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": req.OrderID,
				"custom_id":    req.OrderID,
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         formatMajor(req.Amount),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": req.ReturnURL,
			"cancel_url": req.ReturnURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusGatewayTimeout, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var approveURL string
	for _, link := range result.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}

	return &CreateOrderResult{
		ProviderOrderID: result.ID,
		RedirectURL:     approveURL,
		RawResponse:     string(respBody),
	}, nil
}

// paypalWebhook mirrors the slice of PayPal's webhook envelope we read. The
// capture resource nests our reference differently per event type, so both
// purchase_units and custom_id are consulted.
type paypalWebhook struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		CustomID      string `json:"custom_id"`
		PurchaseUnits []struct {
			ReferenceID string `json:"reference_id"`
		} `json:"purchase_units"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// VerifyWebhook checks the base64 HMAC over the raw body before parsing.
func (a *PayPalAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*NormalizedEvent, error) {
	signature := headers.Get(SignatureHeaderPayPal)
	if signature == "" {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "missing signature header"}
	}
	expected := hmacSHA256Base64(a.webhookSecret, rawBody)
	if !signaturesEqual(expected, signature) {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "signature mismatch"}
	}

	var payload paypalWebhook
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "malformed payload"}
	}

	merchantOrderID := payload.Resource.CustomID
	if len(payload.Resource.PurchaseUnits) > 0 && payload.Resource.PurchaseUnits[0].ReferenceID != "" {
		merchantOrderID = payload.Resource.PurchaseUnits[0].ReferenceID
	}

	providerOrderID := payload.Resource.SupplementaryData.RelatedIDs.OrderID
	providerPaymentID := ""
	if providerOrderID == "" {
		// Order-level events carry the checkout order id directly.
		providerOrderID = payload.Resource.ID
	} else {
		// Capture-level events: resource.id is the capture (payment) id.
		providerPaymentID = payload.Resource.ID
	}

	return &NormalizedEvent{
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: providerPaymentID,
		MerchantOrderID:   merchantOrderID,
		ExternalStatus:    payload.EventType,
		MappedStatus:      mapPayPalEvent(payload.EventType, payload.Resource.Status),
	}, nil
}

// FetchOrderStatus looks the checkout order up with the capped-timeout client.
// A timeout here means "unable to confirm yet", never success.
func (a *PayPalAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/checkout/orders/"+providerOrderID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.lookupClient.Do(httpReq)
	if err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: http.StatusGatewayTimeout, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	switch result.Status {
	case "COMPLETED":
		return StatusPaid, nil
	case "VOIDED":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

func mapPayPalEvent(eventType, resourceStatus string) string {
	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		return StatusPaid
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED", "PAYMENT.CAPTURE.REFUNDED":
		return StatusFailed
	}
	switch resourceStatus {
	case "COMPLETED":
		return StatusPaid
	case "DENIED", "DECLINED":
		return StatusFailed
	default:
		return StatusPending
	}
}
