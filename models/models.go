package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a regular user in the system. Balance and TotalEarned are
// kept in minor units (paise) so ledger sums stay exact; they are mutated only
// through the wallet service, never written directly by handlers.
type User struct {
	gorm.Model
	Username       string     `gorm:"uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	Phone          string     `json:"phone"`
	Balance        int64      `json:"balance" gorm:"not null;default:0"`
	TotalEarned    int64      `json:"total_earned" gorm:"not null;default:0"`
	ReferralCode   string     `gorm:"uniqueIndex" json:"referral_code"`
	ReferredBy     *uint      `json:"referred_by"`
	ReferralsCount int        `json:"referrals_count" gorm:"default:0"`
	PremiumUntil   *time.Time `json:"premium_until"`
	IsBlocked      bool       `json:"is_blocked"`
	IsAdmin        bool       `json:"is_admin" gorm:"default:false"`
	LastLoginAt    time.Time  `json:"last_login_at"`
}

// IsPremium reports whether the user currently has an active premium plan.
func (u *User) IsPremium() bool {
	return u.PremiumUntil != nil && u.PremiumUntil.After(time.Now())
}
