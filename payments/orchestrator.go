package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when no payment order matches the given id.
var ErrOrderNotFound = errors.New("payment order not found")

// ErrOrderIDConflict is returned when order id generation collided twice in a
// row, which in practice indicates something is badly wrong with the clock or
// the random source.
var ErrOrderIDConflict = errors.New("order id conflict")

// ErrInvalidAmount is returned for non-positive payment amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Orchestrator creates payment orders against external gateways. The order row
// is persisted before the gateway is called, so a crash mid-call always leaves
// an audit record behind.
type Orchestrator struct {
	db         *gorm.DB
	adapters   map[string]gateway.Adapter
	reconciler *Reconciler
	domain     string // public base URL for return/notify links
}

// NewOrchestrator wires an orchestrator. The reconciler is shared so manual
// verification settles orders through the same exactly-once path webhooks use.
func NewOrchestrator(db *gorm.DB, adapters map[string]gateway.Adapter, reconciler *Reconciler, domain string) *Orchestrator {
	return &Orchestrator{
		db:         db,
		adapters:   adapters,
		reconciler: reconciler,
		domain:     domain,
	}
}

// CreatePayment creates an order for amountMajor whole currency units and
// initiates the charge with the selected provider. Amounts are converted to
// minor units by an integer multiply (1 rupee/dollar = 100 paise/cents);
// floats never enter the ledger.
func (o *Orchestrator) CreatePayment(ctx context.Context, user *models.User, amountMajor int64, currency, purpose, provider string) (*models.PaymentOrder, *gateway.CreateOrderResult, error) {
	if amountMajor <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	adapter, ok := o.adapters[provider]
	if !ok {
		return nil, nil, ErrUnsupportedProvider
	}
	if purpose == "" {
		purpose = models.PurposeWalletTopup
	}
	amountMinor := amountMajor * 100

	order, err := o.insertOrder(ctx, user.ID, amountMinor, strings.ToUpper(currency), purpose, provider)
	if err != nil {
		return nil, nil, err
	}
	utils.LogInfo("Created order %s (%s, %d %s) for user %d", order.OrderID, provider, amountMinor, order.Currency, user.ID)

	result, err := adapter.CreateOrder(ctx, gateway.CreateOrderRequest{
		OrderID:  order.OrderID,
		Amount:   amountMinor,
		Currency: order.Currency,
		Customer: gateway.Customer{
			ID:    strconv.FormatUint(uint64(user.ID), 10),
			Name:  user.Username,
			Email: user.Email,
			Phone: user.Phone,
		},
		ReturnURL: o.domain + "/payment/success",
		NotifyURL: o.domain + "/v1/webhooks/" + provider,
	})
	if err != nil {
		if isGatewayTimeout(err) {
			// A timeout is not evidence the charge didn't happen. The order
			// stays in created for a later VerifyPayment to resolve.
			utils.LogError("Gateway call for order %s timed out, leaving order in created: %v", order.OrderID, err)
			return nil, nil, err
		}
		utils.LogError("Gateway rejected order %s: %v", order.OrderID, err)
		cols := map[string]interface{}{"status": models.OrderStatusFailed}
		var reqErr *gateway.RequestError
		if errors.As(err, &reqErr) {
			cols["raw_payload"] = reqErr.Body
		}
		if dbErr := o.db.WithContext(ctx).Model(order).
			Where("status = ?", models.OrderStatusCreated).
			Updates(cols).Error; dbErr != nil {
			utils.LogError("Failed to mark order %s failed: %v", order.OrderID, dbErr)
		}
		return nil, nil, err
	}

	updates := map[string]interface{}{
		"status":            models.OrderStatusPending,
		"provider_order_id": result.ProviderOrderID,
		"raw_payload":       result.RawResponse,
	}
	if err := o.db.WithContext(ctx).Model(order).
		Where("status = ?", models.OrderStatusCreated).
		Updates(updates).Error; err != nil {
		return nil, nil, err
	}
	order.Status = models.OrderStatusPending
	order.ProviderOrderID = result.ProviderOrderID

	utils.LogInfo("Order %s pending with provider order id %s", order.OrderID, result.ProviderOrderID)
	return order, result, nil
}

// insertOrder persists a new order in created status. The unique index on
// order_id makes the insert fail closed on a collision; one retry with a fresh
// id is attempted before surfacing ErrOrderIDConflict.
func (o *Orchestrator) insertOrder(ctx context.Context, userID uint, amountMinor int64, currency, purpose, provider string) (*models.PaymentOrder, error) {
	for attempt := 0; attempt < 2; attempt++ {
		order := &models.PaymentOrder{
			OrderID:  newOrderID(provider),
			Provider: provider,
			UserID:   userID,
			Amount:   amountMinor,
			Currency: currency,
			Purpose:  purpose,
			Status:   models.OrderStatusCreated,
		}
		err := o.db.WithContext(ctx).Create(order).Error
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		utils.LogError("Order id %s collided, retrying with a fresh id", order.OrderID)
	}
	return nil, ErrOrderIDConflict
}

// newOrderID builds an order id that is both time-sortable and unguessable.
func newOrderID(provider string) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", provider, time.Now().UnixNano(), random)
}

// GetOrder loads a user's order by id. userID 0 skips the ownership check
// (admin views).
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string, userID uint) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	q := o.db.WithContext(ctx).Where("order_id = ?", orderID)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// VerifyPayment resolves an ambiguous order (created after a gateway timeout,
// or pending with a lost webhook) by asking the gateway for its status, then
// settles through the reconciler's exactly-once path. Safe to call repeatedly.
func (o *Orchestrator) VerifyPayment(ctx context.Context, orderID string, userID uint) (*models.PaymentOrder, error) {
	order, err := o.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return order, nil
	}

	adapter, ok := o.adapters[order.Provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	mapped, err := adapter.FetchOrderStatus(ctx, order.ProviderOrderID, order.OrderID)
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Manual verify of order %s: gateway reports %q", order.OrderID, mapped)

	if _, err := o.reconciler.Settle(ctx, order.OrderID, SettleEvent{MappedStatus: mapped}); err != nil {
		return nil, err
	}
	return o.GetOrder(ctx, orderID, userID)
}

func isGatewayTimeout(err error) bool {
	var reqErr *gateway.RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusGatewayTimeout
}
