package controllers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/ganeshai/ganesh-ai/wallet"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// minWithdrawalPaise is the smallest payout we process (₹100).
const minWithdrawalPaise = 10000

// WalletController exposes wallet balance, ledger history and withdrawals.
type WalletController struct {
	DB     *gorm.DB
	Wallet *wallet.Service
}

// NewWalletController wires a wallet controller.
func NewWalletController(db *gorm.DB, walletSvc *wallet.Service) *WalletController {
	return &WalletController{DB: db, Wallet: walletSvc}
}

// GetBalance returns the user's current wallet balance.
func (wc *WalletController) GetBalance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	// Single read so balance, total_earned and is_premium come from the
	// same row rather than mixing fresh balance with the context snapshot.
	var fresh models.User
	if err := wc.DB.WithContext(c.Request.Context()).First(&fresh, user.ID).Error; err != nil {
		utils.LogError("Failed to get balance for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to get wallet balance", nil)
		return
	}

	utils.Success(c, "Wallet balance", gin.H{
		"balance":         fresh.Balance,
		"balance_display": utils.FormatRupees(fresh.Balance),
		"total_earned":    fresh.TotalEarned,
		"is_premium":      fresh.IsPremium(),
	})
}

// GetTransactions returns a page of the user's ledger, newest first.
func (wc *WalletController) GetTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit := utils.GetPaginationParams(c)
	txns, total, err := wc.Wallet.Transactions(c.Request.Context(), user.ID, page, limit)
	if err != nil {
		utils.LogError("Failed to get transactions for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to get transactions", nil)
		return
	}

	items := make([]gin.H, 0, len(txns))
	for _, t := range txns {
		items = append(items, gin.H{
			"id":             t.ID,
			"amount":         t.Amount,
			"amount_display": utils.FormatRupees(t.Amount),
			"type":           t.Type,
			"description":    t.Description,
			"reference":      t.Reference,
			"created_at":     t.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	utils.SuccessWithPagination(c, "Wallet transactions", gin.H{"transactions": items}, total, page, limit)
}

// Withdraw debits the wallet and records a payout request. Debit and request
// row commit in one transaction, so a request always has its matching ledger
// entry.
func (wc *WalletController) Withdraw(c *gin.Context) {
	utils.LogInfo("Withdraw called")
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Amount      int64  `json:"amount" binding:"required,min=1"` // minor units
		BankDetails string `json:"bank_details" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid withdrawal request from user %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. Amount and bank details are required", err.Error())
		return
	}
	if req.Amount < minWithdrawalPaise {
		utils.BadRequest(c, fmt.Sprintf("Minimum withdrawal is %s", utils.FormatRupees(minWithdrawalPaise)), nil)
		return
	}

	transferID := "wd_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	withdrawal := models.WithdrawalRequest{
		UserID:      user.ID,
		Amount:      req.Amount,
		TransferID:  transferID,
		Status:      models.WithdrawalStatusProcessing,
		BankDetails: req.BankDetails,
	}

	err := wc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if _, err := wc.Wallet.DebitTx(tx, user.ID, req.Amount, "Withdrawal to bank account", transferID); err != nil {
			return err
		}
		return tx.Create(&withdrawal).Error
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			utils.LogInfo("Withdrawal rejected for user %d: insufficient balance", user.ID)
			utils.BadRequest(c, "Insufficient wallet balance", nil)
			return
		}
		utils.LogError("Failed to create withdrawal for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to process withdrawal", nil)
		return
	}

	utils.LogInfo("Withdrawal %s created for user %d: %d paise", transferID, user.ID, req.Amount)
	utils.Created(c, "Withdrawal request submitted", gin.H{
		"transfer_id":    withdrawal.TransferID,
		"amount":         withdrawal.Amount,
		"amount_display": utils.FormatRupees(withdrawal.Amount),
		"status":         withdrawal.Status,
	})
}

// GetWithdrawals lists the user's withdrawal requests, newest first.
func (wc *WalletController) GetWithdrawals(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit := utils.GetPaginationParams(c)
	var total int64
	if err := wc.DB.Model(&models.WithdrawalRequest{}).Where("user_id = ?", user.ID).Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to get withdrawals", nil)
		return
	}

	var withdrawals []models.WithdrawalRequest
	if err := wc.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		utils.LogError("Failed to list withdrawals for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to get withdrawals", nil)
		return
	}

	items := make([]gin.H, 0, len(withdrawals))
	for _, w := range withdrawals {
		items = append(items, gin.H{
			"transfer_id":    w.TransferID,
			"amount":         w.Amount,
			"amount_display": utils.FormatRupees(w.Amount),
			"status":         w.Status,
			"created_at":     w.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	utils.SuccessWithPagination(c, "Withdrawal requests", gin.H{"withdrawals": items}, total, page, limit)
}
