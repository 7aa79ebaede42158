package controllers

import (
	"errors"

	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/payments"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/gin-gonic/gin"
)

// PaymentController exposes payment creation and verification endpoints.
type PaymentController struct {
	Orchestrator *payments.Orchestrator
}

// NewPaymentController wires a payment controller.
func NewPaymentController(orchestrator *payments.Orchestrator) *PaymentController {
	return &PaymentController{Orchestrator: orchestrator}
}

// CreatePayment creates a payment order and initiates the charge with the
// selected gateway.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	utils.LogInfo("CreatePayment called")
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Amount   int64  `json:"amount" binding:"required,min=1"` // whole rupees
		Currency string `json:"currency"`
		Purpose  string `json:"purpose"`
		Provider string `json:"provider" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid payment request from user %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. Amount and provider are required", err.Error())
		return
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	switch req.Purpose {
	case "", models.PurposeWalletTopup, models.PurposePremiumMonthly, models.PurposePremiumYearly:
	default:
		utils.UnprocessableEntity(c, "Unknown payment purpose", req.Purpose)
		return
	}
	utils.LogDebug("Payment request - User: %d, Amount: %d, Provider: %s, Purpose: %s",
		user.ID, req.Amount, req.Provider, req.Purpose)

	order, result, err := pc.Orchestrator.CreatePayment(c.Request.Context(), &user, req.Amount, req.Currency, req.Purpose, req.Provider)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnsupportedProvider):
			utils.BadRequest(c, "Unsupported payment provider", req.Provider)
		case errors.Is(err, payments.ErrInvalidAmount):
			utils.BadRequest(c, "Amount must be positive", nil)
		case errors.Is(err, payments.ErrOrderIDConflict):
			utils.LogError("Order id conflict for user %d: %v", user.ID, err)
			utils.Conflict(c, "Could not allocate an order id, please retry", nil)
		default:
			var authErr *gateway.AuthError
			if errors.As(err, &authErr) {
				utils.LogError("Gateway auth failure for %s: %v", req.Provider, err)
				utils.BadGateway(c, "Payment gateway is not available right now", nil)
				return
			}
			utils.LogError("Failed to create payment for user %d: %v", user.ID, err)
			utils.BadGateway(c, "Failed to initiate payment, please try again", nil)
		}
		return
	}

	utils.LogInfo("Payment initiated - Order: %s, Provider: %s", order.OrderID, order.Provider)
	utils.Created(c, "Payment initiated", gin.H{
		"order_id":          order.OrderID,
		"provider":          order.Provider,
		"provider_order_id": order.ProviderOrderID,
		"amount":            order.Amount,
		"amount_display":    utils.FormatRupees(order.Amount),
		"currency":          order.Currency,
		"status":            order.Status,
		"redirect_url":      result.RedirectURL,
		"client_payload":    result.ClientPayload,
	})
}

// VerifyPayment resolves an order's status directly with the gateway. Used
// when the client returns from checkout before the webhook lands.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	utils.LogInfo("VerifyPayment called")
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid verify request from user %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. order_id is required", err.Error())
		return
	}

	order, err := pc.Orchestrator.VerifyPayment(c.Request.Context(), req.OrderID, user.ID)
	if err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			utils.NotFound(c, "Payment order not found")
			return
		}
		utils.LogError("Failed to verify order %s: %v", req.OrderID, err)
		utils.BadGateway(c, "Unable to verify payment right now, please try again", nil)
		return
	}

	utils.Success(c, "Payment status", orderPayload(order))
}

// GetOrder returns one of the user's payment orders.
func (pc *PaymentController) GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orderID := c.Param("order_id")
	order, err := pc.Orchestrator.GetOrder(c.Request.Context(), orderID, user.ID)
	if err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			utils.NotFound(c, "Payment order not found")
			return
		}
		utils.LogError("Failed to load order %s: %v", orderID, err)
		utils.InternalServerError(c, "Failed to load order", nil)
		return
	}

	utils.Success(c, "Payment order", orderPayload(order))
}

func orderPayload(order *models.PaymentOrder) gin.H {
	return gin.H{
		"order_id":            order.OrderID,
		"provider":            order.Provider,
		"provider_order_id":   order.ProviderOrderID,
		"provider_payment_id": order.ProviderPaymentID,
		"amount":              order.Amount,
		"amount_display":      utils.FormatRupees(order.Amount),
		"currency":            order.Currency,
		"purpose":             order.Purpose,
		"status":              order.Status,
		"created_at":          order.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// currentUser pulls the authenticated user out of the gin context.
func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		utils.LogError("User not found in context")
		utils.Unauthorized(c, "User not found")
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	if !ok {
		utils.LogError("Invalid user type in context")
		utils.BadRequest(c, "Invalid user in context", nil)
		return models.User{}, false
	}
	return user, true
}
