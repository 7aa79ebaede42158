package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/ganeshai/ganesh-ai/wallet"
	"gorm.io/gorm"
)

// ErrUnsupportedProvider is returned for a provider no adapter is registered for.
var ErrUnsupportedProvider = errors.New("unsupported payment provider")

// Webhook processing outcomes, reported back to the HTTP handler.
const (
	OutcomeSettled   = "settled"   // order transitioned and wallet credited
	OutcomeFailed    = "failed"    // order transitioned to failed
	OutcomeDuplicate = "duplicate" // order already terminal, nothing done
	OutcomePending   = "pending"   // intermediate event, nothing done
	OutcomeNoOrder   = "no_order"  // no matching order, safely ignored
)

// WebhookResult describes what a webhook delivery ended up doing.
type WebhookResult struct {
	OrderID string
	Outcome string
}

// ReceiptSender delivers a payment confirmation to the user after settle.
// Failures are logged, never propagated: the money is already credited.
type ReceiptSender interface {
	SendPaymentReceipt(email, username string, amount int64, orderID string) error
}

// Reconciler turns verified gateway webhooks into terminal order states and
// exactly-once wallet credits. It holds no in-process state; all correctness
// comes from the conditional update on payment_orders.
type Reconciler struct {
	db       *gorm.DB
	adapters map[string]gateway.Adapter
	wallet   *wallet.Service
	receipts ReceiptSender
}

// NewReconciler wires a reconciler. receipts may be nil.
func NewReconciler(db *gorm.DB, adapters map[string]gateway.Adapter, walletSvc *wallet.Service, receipts ReceiptSender) *Reconciler {
	return &Reconciler{
		db:       db,
		adapters: adapters,
		wallet:   walletSvc,
		receipts: receipts,
	}
}

// HandleWebhook verifies, correlates and settles one webhook delivery.
// Returns a *gateway.VerificationError (for a 401 response) when the signature
// is bad; any other error means "unable to process, provider should retry".
// Re-running with the same payload is always safe.
func (r *Reconciler) HandleWebhook(ctx context.Context, provider string, rawBody []byte, headers http.Header) (*WebhookResult, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	event, err := adapter.VerifyWebhook(rawBody, headers)
	if err != nil {
		var verr *gateway.VerificationError
		if errors.As(err, &verr) {
			utils.LogError("Rejected %s webhook: %s", provider, verr.Reason)
		}
		return nil, err
	}
	utils.LogInfo("Verified %s webhook: external status %q mapped to %q", provider, event.ExternalStatus, event.MappedStatus)

	order, err := r.findOrder(ctx, provider, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Duplicate, test event, or an order belonging to another
			// deployment. Never synthesize an order from a webhook.
			utils.LogInfo("No order matches %s webhook (provider order %q, merchant ref %q), ignoring",
				provider, event.ProviderOrderID, event.MerchantOrderID)
			return &WebhookResult{Outcome: OutcomeNoOrder}, nil
		}
		return nil, err
	}

	if order.Terminal() {
		utils.LogInfo("Order %s already %s, acknowledging duplicate delivery", order.OrderID, order.Status)
		return &WebhookResult{OrderID: order.OrderID, Outcome: OutcomeDuplicate}, nil
	}

	outcome, err := r.Settle(ctx, order.OrderID, SettleEvent{
		MappedStatus:      event.MappedStatus,
		ProviderOrderID:   event.ProviderOrderID,
		ProviderPaymentID: event.ProviderPaymentID,
		RawPayload:        string(rawBody),
	})
	if err != nil {
		return nil, err
	}
	return &WebhookResult{OrderID: order.OrderID, Outcome: outcome}, nil
}

// findOrder locates the order a webhook refers to: primarily by the provider's
// order id, falling back to our own order id when the provider echoes it (e.g.
// PayPal's purchase_units reference). Provider is part of the match so one
// gateway's ids can never claim another gateway's order.
func (r *Reconciler) findOrder(ctx context.Context, provider string, event *gateway.NormalizedEvent) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if event.ProviderOrderID != "" {
		err := r.db.WithContext(ctx).
			Where("provider = ? AND provider_order_id = ?", provider, event.ProviderOrderID).
			First(&order).Error
		if err == nil {
			return &order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if event.MerchantOrderID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	err := r.db.WithContext(ctx).
		Where("provider = ? AND order_id = ?", provider, event.MerchantOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SettleEvent is the normalized outcome applied to an order.
type SettleEvent struct {
	MappedStatus      string
	ProviderOrderID   string
	ProviderPaymentID string
	RawPayload        string
}

// Settle transitions the order and, for a paid event, credits the wallet
// exactly once. The conditional UPDATE claims the order: of N concurrent
// deliveries only the one whose update matched a row performs the credit, and
// order transition, ledger append and balance increment commit atomically.
func (r *Reconciler) Settle(ctx context.Context, orderID string, event SettleEvent) (string, error) {
	switch event.MappedStatus {
	case gateway.StatusPending:
		// Intermediate provider event; the order stays pending.
		return OutcomePending, nil

	case gateway.StatusFailed:
		res := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
			Where("order_id = ? AND status IN ?", orderID, []string{models.OrderStatusCreated, models.OrderStatusPending}).
			Updates(r.transitionColumns(models.OrderStatusFailed, event))
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 0 {
			return OutcomeDuplicate, nil
		}
		utils.LogInfo("Order %s marked failed", orderID)
		return OutcomeFailed, nil

	case gateway.StatusPaid:
		var settledOrder models.PaymentOrder
		claimed := false
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.PaymentOrder{}).
				Where("order_id = ? AND status IN ?", orderID, []string{models.OrderStatusCreated, models.OrderStatusPending}).
				Updates(r.transitionColumns(models.OrderStatusPaid, event))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost the claim: a concurrent delivery settled first.
				return nil
			}
			claimed = true

			if err := tx.Where("order_id = ?", orderID).First(&settledOrder).Error; err != nil {
				return err
			}
			if _, err := r.wallet.CreditTx(tx, settledOrder.UserID, settledOrder.Amount,
				"Payment received: "+settledOrder.Purpose, settledOrder.OrderID); err != nil {
				return err
			}
			return r.applyPurpose(tx, &settledOrder)
		})
		if err != nil {
			return "", err
		}
		if !claimed {
			return OutcomeDuplicate, nil
		}

		utils.LogInfo("Order %s settled: credited %d to user %d", orderID, settledOrder.Amount, settledOrder.UserID)
		r.sendReceipt(&settledOrder)
		return OutcomeSettled, nil
	}

	return "", errors.New("unknown mapped status: " + event.MappedStatus)
}

func (r *Reconciler) transitionColumns(status string, event SettleEvent) map[string]interface{} {
	cols := map[string]interface{}{
		"status":      status,
		"raw_payload": event.RawPayload,
	}
	if event.ProviderOrderID != "" {
		cols["provider_order_id"] = event.ProviderOrderID
	}
	if event.ProviderPaymentID != "" {
		cols["provider_payment_id"] = event.ProviderPaymentID
	}
	return cols
}

// applyPurpose handles purpose-specific side effects of a successful payment.
// Premium purchases extend the subscription window on top of the wallet credit.
func (r *Reconciler) applyPurpose(tx *gorm.DB, order *models.PaymentOrder) error {
	var days int
	switch order.Purpose {
	case models.PurposePremiumMonthly:
		days = 30
	case models.PurposePremiumYearly:
		days = 365
	default:
		return nil
	}

	var user models.User
	if err := tx.First(&user, order.UserID).Error; err != nil {
		return err
	}
	base := time.Now()
	if user.PremiumUntil != nil && user.PremiumUntil.After(base) {
		base = *user.PremiumUntil
	}
	until := base.AddDate(0, 0, days)
	return tx.Model(&user).Update("premium_until", until).Error
}

func (r *Reconciler) sendReceipt(order *models.PaymentOrder) {
	if r.receipts == nil {
		return
	}
	var user models.User
	if err := r.db.First(&user, order.UserID).Error; err != nil {
		utils.LogError("Receipt lookup failed for user %d: %v", order.UserID, err)
		return
	}
	go func() {
		if err := r.receipts.SendPaymentReceipt(user.Email, user.Username, order.Amount, order.OrderID); err != nil {
			utils.LogError("Failed to send receipt for order %s: %v", order.OrderID, err)
		}
	}()
}
