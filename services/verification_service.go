package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	verificationTTL         = 15 * time.Minute
	verificationDigits      = 6
	maxVerificationAttempts = 5
)

var (
	// ErrVerificationNotFound indicates no code was issued for the phone and type
	ErrVerificationNotFound = errors.New("verification: code not found")
	// ErrVerificationExpired indicates the code is past its expiry
	ErrVerificationExpired = errors.New("verification: code expired")
	// ErrVerificationMismatch indicates the submitted code is wrong or already used
	ErrVerificationMismatch = errors.New("verification: code does not match")
	// ErrVerificationAttempts indicates the code was locked after too many wrong guesses
	ErrVerificationAttempts = errors.New("verification: too many attempts")
	// ErrVerificationInput indicates an invalid phone number or code type
	ErrVerificationInput = errors.New("verification: invalid phone or type")

	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// CodeSender delivers a verification code to a phone
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogCodeSender writes codes to the log instead of sending them
type LogCodeSender struct {
	Logger *zap.Logger
}

// SendCode logs the code itself only at debug level
func (s LogCodeSender) SendCode(_ context.Context, phone, code string) error {
	s.Logger.Info("verification code issued", zap.String("phone", phone))
	s.Logger.Debug("verification code", zap.String("phone", phone), zap.String("code", code))
	return nil
}

// VerificationService issues and checks phone verification codes
type VerificationService struct {
	db     *gorm.DB
	sender CodeSender
	clock  func() time.Time
}

// NewVerificationService creates a verification service. A nil clock uses time.Now.
func NewVerificationService(db *gorm.DB, sender CodeSender, clock func() time.Time) *VerificationService {
	if clock == nil {
		clock = time.Now
	}
	return &VerificationService{db: db, sender: sender, clock: clock}
}

var verificationServiceInstance *VerificationService

// GetVerificationService returns the registered verification service
func GetVerificationService() *VerificationService {
	return verificationServiceInstance
}

// SetVerificationService registers the verification service
func SetVerificationService(service *VerificationService) {
	verificationServiceInstance = service
}

func validVerificationType(typ string) bool {
	switch typ {
	case models.VerificationRegister, models.VerificationResetPassword, models.VerificationChangeNumber:
		return true
	}
	return false
}

// Issue creates or replaces the code for (phone, type) and sends it
func (s *VerificationService) Issue(ctx context.Context, phone, typ string) (*models.VerificationCode, error) {
	if !phonePattern.MatchString(phone) || !validVerificationType(typ) {
		return nil, ErrVerificationInput
	}

	code, err := randomCode(verificationDigits)
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	now := s.clock()
	record := &models.VerificationCode{
		Phone:     phone,
		Type:      typ,
		Code:      code,
		ExpiresAt: now.Add(verificationTTL),
		Verified:  false,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "verified", "attempts", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, phone, code); err != nil {
			return nil, fmt.Errorf("send verification code: %w", err)
		}
	}
	return record, nil
}

// Verify consumes the code for (phone, type). A code can be used once, and
// stops matching after maxVerificationAttempts wrong guesses until reissued.
func (s *VerificationService) Verify(ctx context.Context, phone, typ, code string) error {
	var record models.VerificationCode
	err := s.db.WithContext(ctx).Where("phone = ? AND type = ?", phone, typ).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVerificationNotFound
		}
		return fmt.Errorf("load verification code: %w", err)
	}

	if record.Expired(s.clock()) {
		return ErrVerificationExpired
	}
	if record.Attempts >= maxVerificationAttempts {
		return ErrVerificationAttempts
	}
	if record.Verified {
		return ErrVerificationMismatch
	}
	if record.Code != code {
		err := s.db.WithContext(ctx).Model(&models.VerificationCode{}).
			Where("id = ?", record.ID).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("count verification attempt: %w", err)
		}
		return ErrVerificationMismatch
	}

	res := s.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ? AND verified = ?", record.ID, false).
		Updates(map[string]any{"verified": true, "updated_at": s.clock()})
	if res.Error != nil {
		return fmt.Errorf("consume verification code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVerificationMismatch
	}
	return nil
}

func randomCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
