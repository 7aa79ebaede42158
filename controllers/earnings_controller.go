package controllers

import (
	"errors"
	"strings"

	"github.com/ganeshai/ganesh-ai/ai"
	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/ganeshai/ganesh-ai/wallet"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EarningsController covers the ways users earn wallet credit outside of
// payments: referrals, chat activity and tracked visits.
type EarningsController struct {
	DB     *gorm.DB
	Wallet *wallet.Service
	AI     ai.Provider

	ReferralBonus int64 // paise credited to the referrer per claim
	ChatEarnRate  int64 // paise credited per chat message
	VisitPayRate  int64 // paise credited per tracked visit
}

// NewEarningsController wires an earnings controller.
func NewEarningsController(db *gorm.DB, walletSvc *wallet.Service, provider ai.Provider, referralBonus, chatEarnRate, visitPayRate int64) *EarningsController {
	return &EarningsController{
		DB:            db,
		Wallet:        walletSvc,
		AI:            provider,
		ReferralBonus: referralBonus,
		ChatEarnRate:  chatEarnRate,
		VisitPayRate:  visitPayRate,
	}
}

// ClaimReferral links the user to a referrer and credits the referrer's
// wallet. Each user can be referred exactly once; the link and the credit
// commit together.
func (ec *EarningsController) ClaimReferral(c *gin.Context) {
	utils.LogInfo("ClaimReferral called")
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		ReferralCode string `json:"referral_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request. referral_code is required", err.Error())
		return
	}
	code := strings.TrimSpace(req.ReferralCode)

	if user.ReferredBy != nil {
		utils.BadRequest(c, "Referral already claimed", nil)
		return
	}
	if strings.EqualFold(code, user.ReferralCode) {
		utils.BadRequest(c, "You cannot use your own referral code", nil)
		return
	}

	var referrer models.User
	if err := ec.DB.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Referral code not found")
			return
		}
		utils.LogError("Referral lookup failed: %v", err)
		utils.InternalServerError(c, "Failed to claim referral", nil)
		return
	}

	err := ec.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent claim for the same user.
		res := tx.Model(&models.User{}).
			Where("id = ? AND referred_by IS NULL", user.ID).
			Update("referred_by", referrer.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("referral already claimed")
		}
		if err := tx.Model(&referrer).Update("referrals_count", gorm.Expr("referrals_count + 1")).Error; err != nil {
			return err
		}
		_, err := ec.Wallet.CreditTx(tx, referrer.ID, ec.ReferralBonus,
			"Referral bonus: "+user.Username, "ref_"+user.Username)
		return err
	})
	if err != nil {
		utils.LogError("Failed to claim referral for user %d: %v", user.ID, err)
		utils.BadRequest(c, "Failed to claim referral", err.Error())
		return
	}

	utils.LogInfo("User %d claimed referral from user %d", user.ID, referrer.ID)
	utils.Success(c, "Referral claimed successfully", gin.H{
		"referrer":      referrer.Username,
		"bonus_display": utils.FormatRupees(ec.ReferralBonus),
	})
}

// Chat sends the prompt to the AI provider and credits the chat earning rate
// on a successful completion. No earning is booked when the provider fails.
func (ec *EarningsController) Chat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt" binding:"required"`
		Model  string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request. prompt is required", err.Error())
		return
	}
	if req.Model == "" {
		req.Model = "gpt-4o-mini"
	}

	reply, err := ec.AI.Generate(c.Request.Context(), req.Prompt, req.Model)
	if err != nil {
		utils.LogError("AI generation failed for user %d: %v", user.ID, err)
		utils.BadGateway(c, "AI service is not available right now", nil)
		return
	}

	txn, err := ec.Wallet.Credit(c.Request.Context(), user.ID, ec.ChatEarnRate, "Chat earning", "")
	if err != nil {
		// The reply is already generated; losing the micro-credit is better
		// than losing the reply.
		utils.LogError("Failed to credit chat earning for user %d: %v", user.ID, err)
		utils.Success(c, "Chat reply", gin.H{"reply": reply, "earned": 0})
		return
	}

	utils.Success(c, "Chat reply", gin.H{
		"reply":          reply,
		"earned":         txn.Amount,
		"earned_display": utils.FormatRupees(txn.Amount),
	})
}

// TrackVisit credits the visit pay rate for one ad-backed visit.
func (ec *EarningsController) TrackVisit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Page string `json:"page"`
	}
	_ = c.ShouldBindJSON(&req)
	description := "Visit earning"
	if req.Page != "" {
		description = "Visit earning: " + req.Page
	}

	txn, err := ec.Wallet.Credit(c.Request.Context(), user.ID, ec.VisitPayRate, description, "")
	if err != nil {
		utils.LogError("Failed to credit visit for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to record visit", nil)
		return
	}

	utils.Success(c, "Visit recorded", gin.H{
		"earned":         txn.Amount,
		"earned_display": utils.FormatRupees(txn.Amount),
	})
}
