package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/payments"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps webhook payload size at 1 MiB. Real gateway events are
// a few KB.
const maxWebhookBody = 1 << 20

// WebhookController receives gateway callbacks. These routes are
// unauthenticated; the HMAC signature check inside the reconciler is the only
// gate, so nothing here may touch the payload before verification.
type WebhookController struct {
	Reconciler *payments.Reconciler
}

// NewWebhookController wires a webhook controller.
func NewWebhookController(reconciler *payments.Reconciler) *WebhookController {
	return &WebhookController{Reconciler: reconciler}
}

// HandleWebhook processes one delivery for the provider in the path.
// A 2xx acknowledges the delivery; a 5xx asks the provider to retry.
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	utils.LogInfo("Webhook received for provider: %s", provider)

	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.LogError("Failed to read %s webhook body: %v", provider, err)
		utils.BadRequest(c, "Unable to read request body", nil)
		return
	}

	result, err := wc.Reconciler.HandleWebhook(c.Request.Context(), provider, rawBody, c.Request.Header)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			utils.LogSecurity("Webhook for unknown provider %q from %s", provider, c.ClientIP())
			utils.NotFound(c, "Unknown provider")
			return
		}
		var verr *gateway.VerificationError
		if errors.As(err, &verr) {
			utils.LogSecurity("Rejected %s webhook from %s: %s", provider, c.ClientIP(), verr.Reason)
			utils.Unauthorized(c, "Invalid signature")
			return
		}
		utils.LogError("Failed to process %s webhook: %v", provider, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed, please retry"})
		return
	}

	utils.LogInfo("Webhook processed - Provider: %s, Order: %s, Outcome: %s", provider, result.OrderID, result.Outcome)
	utils.Success(c, "Webhook processed", gin.H{
		"order_id": result.OrderID,
		"outcome":  result.Outcome,
	})
}
