package payments

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeAdapter is a scriptable gateway for tests.
type fakeAdapter struct {
	provider    string
	event       *gateway.NormalizedEvent
	verifyErr   error
	result      *gateway.CreateOrderResult
	createErr   error
	fetchStatus string
	fetchErr    error
	createCalls int
}

func (f *fakeAdapter) Provider() string { return f.provider }

func (f *fakeAdapter) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderResult, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.result, nil
}

func (f *fakeAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*gateway.NormalizedEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func (f *fakeAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return f.fetchStatus, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PaymentOrder{}, &models.Transaction{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		ReferralCode: "ref_" + username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestOrder(t *testing.T, db *gorm.DB, userID uint, provider, status string, amount int64) *models.PaymentOrder {
	t.Helper()
	order := &models.PaymentOrder{
		OrderID:         fmt.Sprintf("%s_%d_%s", provider, time.Now().UnixNano(), status),
		Provider:        provider,
		UserID:          userID,
		Amount:          amount,
		Currency:        "INR",
		Purpose:         models.PurposeWalletTopup,
		Status:          status,
		ProviderOrderID: "prov_" + status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func newTestReconciler(db *gorm.DB, fake *fakeAdapter) *Reconciler {
	return NewReconciler(db, map[string]gateway.Adapter{fake.provider: fake}, wallet.NewService(db), nil)
}

func userBalance(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Balance
}

func TestHandleWebhookSettlesAndCredits(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 5000)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID:   order.ProviderOrderID,
			ProviderPaymentID: "pay_123",
			ExternalStatus:    "captured",
			MappedStatus:      gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, order.OrderID, result.OrderID)

	assert.Equal(t, int64(5000), userBalance(t, db, user.ID))

	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusPaid, fresh.Status)
	assert.Equal(t, "pay_123", fresh.ProviderPaymentID)

	var txn models.Transaction
	require.NoError(t, db.Where("reference = ?", order.OrderID).First(&txn).Error)
	assert.Equal(t, int64(5000), txn.Amount)
}

func TestHandleWebhookDuplicateDeliveryCreditsOnce(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "bob")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 2500)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: order.ProviderOrderID,
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)
	ctx := context.Background()

	first, err := r.HandleWebhook(ctx, models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, first.Outcome)

	second, err := r.HandleWebhook(ctx, models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	assert.Equal(t, int64(2500), userBalance(t, db, user.ID))

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleWebhookRejectsBadSignatureWithoutMutation(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "carol")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 5000)

	fake := &fakeAdapter{
		provider:  models.ProviderRazorpay,
		verifyErr: &gateway.VerificationError{Provider: models.ProviderRazorpay, Reason: "signature mismatch"},
	}
	r := newTestReconciler(db, fake)

	_, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{"forged":true}`), http.Header{})
	var verr *gateway.VerificationError
	require.ErrorAs(t, err, &verr)

	assert.Zero(t, userBalance(t, db, user.ID))
	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusPending, fresh.Status)
}

func TestHandleWebhookUnsupportedProvider(t *testing.T) {
	db := setupTestDB(t)
	fake := &fakeAdapter{provider: models.ProviderRazorpay}
	r := newTestReconciler(db, fake)

	_, err := r.HandleWebhook(context.Background(), "unknownpay", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestHandleWebhookNoMatchingOrder(t *testing.T) {
	db := setupTestDB(t)
	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: "order_nobody_knows",
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOrder, result.Outcome)
}

func TestHandleWebhookFallsBackToMerchantOrderID(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "dave")
	order := createTestOrder(t, db, user.ID, models.ProviderPayPal, models.OrderStatusPending, 1000)

	fake := &fakeAdapter{
		provider: models.ProviderPayPal,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: "unknown_to_us",
			MerchantOrderID: order.OrderID,
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderPayPal, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, order.OrderID, result.OrderID)
}

func TestHandleWebhookProviderScopedCorrelation(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "erin")
	// A Cashfree order must never be claimable through the Razorpay route,
	// even with matching ids.
	order := createTestOrder(t, db, user.ID, models.ProviderCashfree, models.OrderStatusPending, 1000)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: order.ProviderOrderID,
			MerchantOrderID: order.OrderID,
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOrder, result.Outcome)
	assert.Zero(t, userBalance(t, db, user.ID))
}

func TestHandleWebhookFailedEvent(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "frank")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 3000)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: order.ProviderOrderID,
			ExternalStatus:  "failed",
			MappedStatus:    gateway.StatusFailed,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)

	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusFailed, fresh.Status)
	assert.Zero(t, userBalance(t, db, user.ID))
}

func TestHandleWebhookPendingEventLeavesOrderAlone(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "grace")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 3000)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: order.ProviderOrderID,
			ExternalStatus:  "authorized",
			MappedStatus:    gateway.StatusPending,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)

	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusPending, fresh.Status)
}

func TestTerminalStateIsImmutable(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "heidi")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusFailed, 3000)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: order.ProviderOrderID,
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)

	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusFailed, fresh.Status)
	assert.Zero(t, userBalance(t, db, user.ID))
}

func TestHandleWebhookSettlesOrderStillInCreated(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "judy")
	// A timed-out gateway call leaves the order in created with no provider
	// order id; the paid webhook must still find it and credit the wallet.
	order := &models.PaymentOrder{
		OrderID:  "razorpay_1_timedout",
		Provider: models.ProviderRazorpay,
		UserID:   user.ID,
		Amount:   10000,
		Currency: "INR",
		Purpose:  models.PurposeWalletTopup,
		Status:   models.OrderStatusCreated,
	}
	require.NoError(t, db.Create(order).Error)

	fake := &fakeAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: "order_rz_late",
			MerchantOrderID: order.OrderID,
			MappedStatus:    gateway.StatusPaid,
		},
	}
	r := newTestReconciler(db, fake)

	result, err := r.HandleWebhook(context.Background(), models.ProviderRazorpay, []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, int64(10000), userBalance(t, db, user.ID))

	var fresh models.PaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&fresh).Error)
	assert.Equal(t, models.OrderStatusPaid, fresh.Status)
	assert.Equal(t, "order_rz_late", fresh.ProviderOrderID)
}

func TestSettleClaimGateAllowsSingleCredit(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "karen")
	order := createTestOrder(t, db, user.ID, models.ProviderRazorpay, models.OrderStatusPending, 10000)

	fake := &fakeAdapter{provider: models.ProviderRazorpay}
	r := newTestReconciler(db, fake)
	ctx := context.Background()
	event := SettleEvent{MappedStatus: gateway.StatusPaid, ProviderPaymentID: "pay_once"}

	// Calling Settle directly bypasses HandleWebhook's terminal pre-check, so
	// every call races for the conditional-update claim; only the one whose
	// UPDATE matched a row may credit.
	outcomes := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		outcome, err := r.Settle(ctx, order.OrderID, event)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}

	settled := 0
	for _, outcome := range outcomes {
		switch outcome {
		case OutcomeSettled:
			settled++
		case OutcomeDuplicate:
		default:
			t.Fatalf("unexpected outcome %q", outcome)
		}
	}
	assert.Equal(t, 1, settled)

	assert.Equal(t, int64(10000), userBalance(t, db, user.ID))
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettlePremiumPurchaseExtendsSubscription(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "ivan")
	order := &models.PaymentOrder{
		OrderID:         "stripe_1_premium",
		Provider:        models.ProviderStripe,
		UserID:          user.ID,
		Amount:          49900,
		Currency:        "INR",
		Purpose:         models.PurposePremiumMonthly,
		Status:          models.OrderStatusPending,
		ProviderOrderID: "cs_test_1",
	}
	require.NoError(t, db.Create(order).Error)

	fake := &fakeAdapter{provider: models.ProviderStripe}
	r := newTestReconciler(db, fake)

	outcome, err := r.Settle(context.Background(), order.OrderID, SettleEvent{MappedStatus: gateway.StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	require.NotNil(t, fresh.PremiumUntil)
	assert.True(t, fresh.PremiumUntil.After(time.Now().AddDate(0, 0, 29)))
	// The wallet credit still happens for premium purchases.
	assert.Equal(t, int64(49900), fresh.Balance)
}
