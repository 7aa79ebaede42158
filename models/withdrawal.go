package models

import (
	"time"
)

// WithdrawalRequest statuses
const (
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

// WithdrawalRequest records a payout of wallet balance to a bank account. The
// wallet debit happens atomically with the insert, so a request row always has
// a matching debit Transaction.
type WithdrawalRequest struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	Amount      int64     `json:"amount" gorm:"not null"` // minor units
	TransferID  string    `json:"transfer_id" gorm:"uniqueIndex"`
	Status      string    `json:"status"`
	BankDetails string    `json:"-" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
