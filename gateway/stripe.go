package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ganeshai/ganesh-ai/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeaderStripe is set on every Stripe webhook delivery.
const SignatureHeaderStripe = "Stripe-Signature"

// StripeAdapter wraps Stripe Checkout. Signature verification is delegated to
// the official SDK's webhook.ConstructEvent, which implements Stripe's
// timestamped HMAC scheme with constant-time comparison.
type StripeAdapter struct {
	apiKey        string
	webhookSecret string
}

// NewStripeAdapter builds an adapter and installs the API key into the SDK.
func NewStripeAdapter(apiKey, webhookSecret string) *StripeAdapter {
	stripe.Key = apiKey
	return &StripeAdapter{apiKey: apiKey, webhookSecret: webhookSecret}
}

func (a *StripeAdapter) Provider() string { return models.ProviderStripe }

// CreateOrder creates a Checkout Session. Our order id rides along both as the
// client reference id and in metadata so every later event can be correlated.
func (a *StripeAdapter) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreate(req); err != nil {
		return nil, &RequestError{Provider: a.Provider(), StatusCode: http.StatusBadRequest, Body: err.Error()}
	}
	if a.apiKey == "" {
		return nil, &AuthError{Provider: a.Provider(), Message: "missing api key"}
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Ganesh AI payment " + req.OrderID),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		CancelURL:         stripe.String(req.ReturnURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.AddMetadata("order_id", req.OrderID)

	s, err := session.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			if stripeErr.HTTPStatusCode == http.StatusUnauthorized {
				return nil, &AuthError{Provider: a.Provider(), Message: stripeErr.Msg}
			}
			return nil, &RequestError{Provider: a.Provider(), StatusCode: stripeErr.HTTPStatusCode, Body: stripeErr.Msg}
		}
		return nil, &RequestError{Provider: a.Provider(), StatusCode: transportStatus(err), Body: err.Error()}
	}

	raw, _ := json.Marshal(s)
	return &CreateOrderResult{
		ProviderOrderID: s.ID,
		RedirectURL:     s.URL,
		RawResponse:     string(raw),
	}, nil
}

// VerifyWebhook validates the Stripe-Signature header and normalizes the
// session or payment-intent event.
func (a *StripeAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*NormalizedEvent, error) {
	signature := headers.Get(SignatureHeaderStripe)
	if signature == "" {
		return nil, &VerificationError{Provider: a.Provider(), Reason: "missing signature header"}
	}

	event, err := webhook.ConstructEvent(rawBody, signature, a.webhookSecret)
	if err != nil {
		return nil, &VerificationError{Provider: a.Provider(), Reason: err.Error()}
	}

	normalized := &NormalizedEvent{
		ExternalStatus: string(event.Type),
		MappedStatus:   mapStripeEvent(string(event.Type)),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, &VerificationError{Provider: a.Provider(), Reason: "malformed session payload"}
		}
		normalized.ProviderOrderID = s.ID
		normalized.MerchantOrderID = s.ClientReferenceID
		if normalized.MerchantOrderID == "" {
			normalized.MerchantOrderID = s.Metadata["order_id"]
		}
		if s.PaymentIntent != nil {
			normalized.ProviderPaymentID = s.PaymentIntent.ID
		}
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, &VerificationError{Provider: a.Provider(), Reason: "malformed payment intent payload"}
		}
		normalized.ProviderPaymentID = pi.ID
		normalized.MerchantOrderID = pi.Metadata["order_id"]
	}

	return normalized, nil
}

// FetchOrderStatus looks the Checkout Session up by id.
func (a *StripeAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(providerOrderID, params)
	if err != nil {
		return "", &RequestError{Provider: a.Provider(), StatusCode: transportStatus(err), Body: err.Error()}
	}

	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return StatusPaid, nil
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

func mapStripeEvent(eventType string) string {
	switch eventType {
	case "checkout.session.completed", "payment_intent.succeeded":
		return StatusPaid
	case "payment_intent.payment_failed", "checkout.session.expired":
		return StatusFailed
	default:
		return StatusPending
	}
}
