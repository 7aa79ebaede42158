package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/payments"
	"github.com/ganeshai/ganesh-ai/wallet"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubAdapter struct {
	provider  string
	event     *gateway.NormalizedEvent
	verifyErr error
}

func (s *stubAdapter) Provider() string { return s.provider }

func (s *stubAdapter) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubAdapter) VerifyWebhook(rawBody []byte, headers http.Header) (*gateway.NormalizedEvent, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.event, nil
}

func (s *stubAdapter) FetchOrderStatus(ctx context.Context, providerOrderID, merchantOrderID string) (string, error) {
	return gateway.StatusPending, nil
}

func setupControllerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ctrl_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PaymentOrder{}, &models.Transaction{}, &models.WithdrawalRequest{}))
	return db
}

func newWebhookRouter(db *gorm.DB, stub *stubAdapter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	adapters := map[string]gateway.Adapter{stub.provider: stub}
	reconciler := payments.NewReconciler(db, adapters, wallet.NewService(db), nil)
	wc := NewWebhookController(reconciler)

	router := gin.New()
	router.POST("/v1/webhooks/:provider", wc.HandleWebhook)
	return router
}

func postWebhook(router *gin.Engine, provider string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/"+provider, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookEndpointSettlesOrder(t *testing.T) {
	db := setupControllerDB(t)
	user := &models.User{Username: "alice", Email: "alice@example.com", ReferralCode: "ref_alice"}
	require.NoError(t, db.Create(user).Error)
	order := &models.PaymentOrder{
		OrderID:         "razorpay_1_abc",
		Provider:        models.ProviderRazorpay,
		UserID:          user.ID,
		Amount:          5000,
		Currency:        "INR",
		Purpose:         models.PurposeWalletTopup,
		Status:          models.OrderStatusPending,
		ProviderOrderID: "order_rz_1",
	}
	require.NoError(t, db.Create(order).Error)

	stub := &stubAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: "order_rz_1",
			MappedStatus:    gateway.StatusPaid,
		},
	}
	router := newWebhookRouter(db, stub)

	w := postWebhook(router, models.ProviderRazorpay, []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			OrderID string `json:"order_id"`
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "razorpay_1_abc", resp.Data.OrderID)
	assert.Equal(t, "settled", resp.Data.Outcome)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, int64(5000), fresh.Balance)
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	db := setupControllerDB(t)
	stub := &stubAdapter{
		provider:  models.ProviderRazorpay,
		verifyErr: &gateway.VerificationError{Provider: models.ProviderRazorpay, Reason: "signature mismatch"},
	}
	router := newWebhookRouter(db, stub)

	w := postWebhook(router, models.ProviderRazorpay, []byte(`{"forged":true}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookEndpointUnknownProvider(t *testing.T) {
	db := setupControllerDB(t)
	stub := &stubAdapter{provider: models.ProviderRazorpay}
	router := newWebhookRouter(db, stub)

	w := postWebhook(router, "unknownpay", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookEndpointAcknowledgesUnmatchedEvent(t *testing.T) {
	db := setupControllerDB(t)
	stub := &stubAdapter{
		provider: models.ProviderRazorpay,
		event: &gateway.NormalizedEvent{
			ProviderOrderID: "order_nobody_knows",
			MappedStatus:    gateway.StatusPaid,
		},
	}
	router := newWebhookRouter(db, stub)

	// Unknown orders are acknowledged so the provider stops retrying.
	w := postWebhook(router, models.ProviderRazorpay, []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no_order")
}
