package routes

import (
	"net/http"

	"github.com/ganeshai/ganesh-ai/controllers"
	"github.com/ganeshai/ganesh-ai/middleware"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers bundles the controllers the router mounts.
type Handlers struct {
	Payments *controllers.PaymentController
	Webhooks *controllers.WebhookController
	Wallet   *controllers.WalletController
	Earnings *controllers.EarningsController
	Receipts *controllers.ReceiptController
	Admin    *controllers.AdminEarningsController
}

// SetupRouter initializes and returns the Gin router with all routes.
func SetupRouter(db *gorm.DB, jwtSecret string, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())
	router.Use(utils.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/v1")
	{
		// Webhooks stay outside auth: gateways sign their deliveries and
		// the reconciler verifies before anything else happens.
		api.POST("/webhooks/:provider", h.Webhooks.HandleWebhook)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(db, jwtSecret))
		{
			pay := authed.Group("/pay")
			{
				pay.POST("/create", h.Payments.CreatePayment)
				pay.POST("/verify", h.Payments.VerifyPayment)
				pay.GET("/:order_id", h.Payments.GetOrder)
				pay.GET("/:order_id/receipt", h.Receipts.DownloadReceipt)
			}

			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", h.Wallet.GetBalance)
				wallet.GET("/transactions", h.Wallet.GetTransactions)
				wallet.POST("/withdraw", h.Wallet.Withdraw)
				wallet.GET("/withdrawals", h.Wallet.GetWithdrawals)
			}

			authed.POST("/referral/claim", h.Earnings.ClaimReferral)
			authed.POST("/chat", h.Earnings.Chat)
			authed.POST("/track/visit", h.Earnings.TrackVisit)

			admin := authed.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.GET("/earnings", h.Admin.GetEarnings)
				admin.GET("/earnings/export", h.Admin.ExportEarnings)
			}
		}
	}

	return router
}
