package models

import (
	"time"
)

// Payment order statuses. Transitions are monotonic: created moves to pending
// or failed, pending moves to paid or failed, and nothing leaves a terminal
// state (paid, failed, cancelled).
const (
	OrderStatusCreated   = "created"
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Supported payment gateways.
const (
	ProviderCashfree = "cashfree"
	ProviderRazorpay = "razorpay"
	ProviderPayPal   = "paypal"
	ProviderStripe   = "stripe"
)

// Payment purposes.
const (
	PurposeWalletTopup    = "wallet_topup"
	PurposePremiumMonthly = "premium_monthly"
	PurposePremiumYearly  = "premium_yearly"
)

// PaymentOrder records one attempted charge against an external gateway.
// OrderID is generated before the gateway call and is the idempotency key the
// webhook reconciler correlates on. Rows are never deleted; failed and stale
// orders stay behind as the audit trail.
type PaymentOrder struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           string    `json:"order_id" gorm:"uniqueIndex;not null"`
	Provider          string    `json:"provider" gorm:"not null"`
	UserID            uint      `json:"user_id" gorm:"index;not null"`
	Amount            int64     `json:"amount" gorm:"not null"` // minor units
	Currency          string    `json:"currency" gorm:"not null"`
	Purpose           string    `json:"purpose"`
	Status            string    `json:"status" gorm:"index;not null"`
	ProviderOrderID   string    `json:"provider_order_id" gorm:"index"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	RawPayload        string    `json:"-" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Terminal reports whether the order has reached a final state.
func (o *PaymentOrder) Terminal() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}
