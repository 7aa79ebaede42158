package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ganeshai/ganesh-ai/models"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned when a debit exceeds the user's balance.
// The balance is left untouched.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrUserNotFound is returned when the target user row does not exist.
var ErrUserNotFound = errors.New("user not found")

// Service is the only component allowed to mutate User.Balance and
// User.TotalEarned. Every mutation appends a ledger Transaction in the same
// database transaction, so the ledger always reconciles with the balance.
type Service struct {
	db *gorm.DB
}

// NewService creates a wallet service on top of the given database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Credit atomically adds amount (minor units) to the user's balance and
// total earnings and appends a credit Transaction.
func (s *Service) Credit(ctx context.Context, userID uint, amount int64, description, reference string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.CreditTx(tx, userID, amount, description, reference)
		if err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditTx is Credit running inside an existing transaction. The webhook
// reconciler uses it so the wallet credit commits or rolls back together with
// the order's state transition.
func (s *Service) CreditTx(tx *gorm.DB, userID uint, amount int64, description, reference string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	// Single-statement increment: atomic under concurrent credits, and
	// total_earned can only ever grow.
	res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"balance":      gorm.Expr("balance + ?", amount),
		"total_earned": gorm.Expr("total_earned + ?", amount),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	txn := &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.TransactionTypeCredit,
		Description: description,
		Reference:   reference,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit atomically subtracts amount (minor units) from the user's balance and
// appends a debit Transaction. Fails with ErrInsufficientBalance when the
// balance would go negative; nothing is applied partially.
func (s *Service) Debit(ctx context.Context, userID uint, amount int64, description, reference string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.DebitTx(tx, userID, amount, description, reference)
		if err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DebitTx is Debit running inside an existing transaction.
func (s *Service) DebitTx(tx *gorm.DB, userID uint, amount int64, description, reference string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	// The balance guard rides in the WHERE clause, so two concurrent debits
	// can never overdraw: only updates that keep balance >= 0 match a row.
	res := tx.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientBalance
	}

	txn := &models.Transaction{
		UserID:      userID,
		Amount:      -amount,
		Type:        models.TransactionTypeDebit,
		Description: description,
		Reference:   reference,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// Balance returns the user's spendable balance in minor units.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("balance").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.Balance, nil
}

// Transactions returns a page of the user's ledger entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID uint, page, limit int) ([]models.Transaction, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
