package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Gateway credentials and
// webhook secrets come only from the environment, never from code.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string
	Domain     string // public base URL used for return/notify links

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	CashfreeAppID     string
	CashfreeSecretKey string
	CashfreeBaseURL   string

	PayPalClientID      string
	PayPalClientSecret  string
	PayPalWebhookSecret string
	PayPalBaseURL       string

	StripeSecretKey     string
	StripeWebhookSecret string

	AIBaseURL string
	AIAPIKey  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Earning rates, minor units (paise).
	ReferralBonus int64
	VisitPayRate  int64
	ChatEarnRate  int64
}

// LoadConfig loads configuration from environment variables. A missing .env
// file is fine in production where the environment is injected directly.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		Domain:     getEnv("DOMAIN", "http://localhost:8080"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		CashfreeAppID:     os.Getenv("CASHFREE_APP_ID"),
		CashfreeSecretKey: os.Getenv("CASHFREE_SECRET_KEY"),
		CashfreeBaseURL:   "https://sandbox.cashfree.com",

		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookSecret: os.Getenv("PAYPAL_WEBHOOK_SECRET"),
		PayPalBaseURL:       "https://api-m.sandbox.paypal.com",

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		AIBaseURL: getEnv("AI_BASE_URL", "https://api.openai.com"),
		AIAPIKey:  os.Getenv("AI_API_KEY"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		ReferralBonus: getEnvInt64("REFERRAL_BONUS_PAISE", 1000), // ₹10 per referral
		VisitPayRate:  getEnvInt64("VISIT_PAY_PAISE", 1),         // ₹0.01 per visit
		ChatEarnRate:  getEnvInt64("CHAT_EARN_PAISE", 5),         // ₹0.05 per chat
	}

	if getEnv("CASHFREE_ENVIRONMENT", "sandbox") == "production" {
		cfg.CashfreeBaseURL = "https://api.cashfree.com"
	}
	if getEnv("PAYPAL_ENVIRONMENT", "sandbox") == "live" {
		cfg.PayPalBaseURL = "https://api-m.paypal.com"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
