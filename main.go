package main

import (
	"log"

	"github.com/ganeshai/ganesh-ai/ai"
	"github.com/ganeshai/ganesh-ai/config"
	"github.com/ganeshai/ganesh-ai/controllers"
	"github.com/ganeshai/ganesh-ai/gateway"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/payments"
	"github.com/ganeshai/ganesh-ai/routes"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/ganeshai/ganesh-ai/wallet"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.LogError("Failed to connect to database: %v", err)
		log.Fatal("Failed to connect to database:", err)
	}

	// Gateway adapters
	adapters := map[string]gateway.Adapter{
		models.ProviderRazorpay: gateway.NewRazorpayAdapter(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret),
		models.ProviderCashfree: gateway.NewCashfreeAdapter(cfg.CashfreeAppID, cfg.CashfreeSecretKey, cfg.CashfreeBaseURL),
		models.ProviderPayPal:   gateway.NewPayPalAdapter(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalWebhookSecret, cfg.PayPalBaseURL),
		models.ProviderStripe:   gateway.NewStripeAdapter(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
	}

	// Core services
	walletSvc := wallet.NewService(db)
	receipts := utils.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	reconciler := payments.NewReconciler(db, adapters, walletSvc, receipts)
	orchestrator := payments.NewOrchestrator(db, adapters, reconciler, cfg.Domain)
	aiProvider := ai.NewHTTPProvider(cfg.AIBaseURL, cfg.AIAPIKey)

	// HTTP layer
	handlers := routes.Handlers{
		Payments: controllers.NewPaymentController(orchestrator),
		Webhooks: controllers.NewWebhookController(reconciler),
		Wallet:   controllers.NewWalletController(db, walletSvc),
		Earnings: controllers.NewEarningsController(db, walletSvc, aiProvider, cfg.ReferralBonus, cfg.ChatEarnRate, cfg.VisitPayRate),
		Receipts: controllers.NewReceiptController(orchestrator),
		Admin:    controllers.NewAdminEarningsController(db),
	}
	router := routes.SetupRouter(db, cfg.JWTSecret, handlers)

	utils.LogInfo("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
