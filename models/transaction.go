package models

import (
	"time"
)

// TransactionType constants
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// Well-known transaction descriptions' reference prefixes live with the
// callers; Reference carries the PaymentOrder.OrderID for gateway credits and
// a caller-generated tag otherwise.

// Transaction is one append-only ledger entry. Amount is signed: positive for
// credits, negative for debits. Entries are never updated or deleted, so the
// sum of a user's amounts always reconciles with Balance.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	Amount      int64     `json:"amount" gorm:"not null"` // minor units, signed
	Type        string    `json:"type" gorm:"not null"`   // credit, debit
	Description string    `json:"description"`
	Reference   string    `json:"reference" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
}
