package models

import (
	"time"
)

// Verification code types
const (
	VerificationRegister      = "register"
	VerificationResetPassword = "reset-password"
	VerificationChangeNumber  = "change-number"
)

// VerificationCode is a short-lived code sent to a phone number. There is at
// most one per (phone, type); resending replaces it.
type VerificationCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"not null;uniqueIndex:idx_verification_phone_type" json:"phone"`
	Type      string    `gorm:"not null;uniqueIndex:idx_verification_phone_type" json:"type"`
	Code      string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
	Attempts  int       `gorm:"not null;default:0" json:"-"` // wrong guesses since the code was issued
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the VerificationCode model
func (VerificationCode) TableName() string {
	return "verification_codes"
}

// Expired reports whether the code can no longer be used at now
func (v VerificationCode) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
