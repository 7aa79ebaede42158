package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMajor(t *testing.T) {
	assert.Equal(t, "5.00", formatMajor(500))
	assert.Equal(t, "0.01", formatMajor(1))
	assert.Equal(t, "0.00", formatMajor(0))
	assert.Equal(t, "123.45", formatMajor(12345))
	assert.Equal(t, "10000.00", formatMajor(1000000))
}

func TestValidateCreate(t *testing.T) {
	valid := CreateOrderRequest{OrderID: "razorpay_1_abc", Amount: 100, Currency: "INR"}
	assert.NoError(t, validateCreate(valid))

	missing := valid
	missing.OrderID = ""
	assert.Error(t, validateCreate(missing))

	zero := valid
	zero.Amount = 0
	assert.Error(t, validateCreate(zero))

	negative := valid
	negative.Amount = -100
	assert.Error(t, validateCreate(negative))

	badCurrency := valid
	badCurrency.Currency = "RUPEES"
	assert.Error(t, validateCreate(badCurrency))
}

func TestTransportStatusClassifiesTimeouts(t *testing.T) {
	// A timeout must map to 504: it is not evidence the charge failed, and
	// callers keep the order resolvable instead of terminalizing it.
	assert.Equal(t, http.StatusGatewayTimeout, transportStatus(context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, transportStatus(fmt.Errorf("create order: %w", context.DeadlineExceeded)))

	urlErr := &url.Error{Op: "Post", URL: "https://api.razorpay.com/v1/orders", Err: context.DeadlineExceeded}
	assert.Equal(t, http.StatusGatewayTimeout, transportStatus(urlErr))

	// SDKs that flatten the transport error into a string still classify.
	flattened := errors.New(`Post "https://api.razorpay.com/v1/orders": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`)
	assert.Equal(t, http.StatusGatewayTimeout, transportStatus(flattened))

	// Non-timeout transport failures stay 502.
	assert.Equal(t, http.StatusBadGateway, transportStatus(errors.New("connection refused")))
	assert.Equal(t, http.StatusBadGateway, transportStatus(errors.New("BAD_REQUEST_ERROR: amount too low")))
}

func TestSignaturesEqual(t *testing.T) {
	assert.True(t, signaturesEqual("abc123", "abc123"))
	assert.False(t, signaturesEqual("abc123", "abc124"))
	assert.False(t, signaturesEqual("abc123", ""))
}
