package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"content_platform/internal/domain"

	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const totpPendingTTL = 10 * time.Minute

// TOTPEnrollment is returned when a user starts authenticator setup
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"` // Rendered as a QR code by the client
}

// TOTPService manages authenticator app enrollment
type TOTPService struct {
	db     *gorm.DB
	rdb    redis.Cmdable
	issuer string
}

// NewTOTPService creates a TOTPService
func NewTOTPService(db *gorm.DB, rdb redis.Cmdable, issuer string) *TOTPService {
	return &TOTPService{db: db, rdb: rdb, issuer: issuer}
}

func totpPendingKey(uid uint) string { return "totp:pending:" + strconv.FormatUint(uint64(uid), 10) }

// BeginEnrollment generates a secret that becomes active once confirmed
func (s *TOTPService) BeginEnrollment(ctx context.Context, user *domain.User) (*TOTPEnrollment, error) {
	if user.OTPMethod == domain.OTPMethodTOTP {
		return nil, fmt.Errorf("authenticator already enabled: %w", ErrConflict)
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.issuer, AccountName: user.Email})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	if err := s.rdb.Set(ctx, totpPendingKey(user.ID), key.Secret(), totpPendingTTL).Err(); err != nil {
		return nil, err
	}
	return &TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmEnrollment activates the pending secret when code matches it
func (s *TOTPService) ConfirmEnrollment(ctx context.Context, uid uint, code string) error {
	secret, err := s.rdb.Get(ctx, totpPendingKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("no enrollment in progress: %w", ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !totp.Validate(code, secret) {
		return fmt.Errorf("invalid code: %w", ErrUnauthorized)
	}
	res := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", uid).
		Updates(map[string]any{"totp_secret": secret, "otp_method": domain.OTPMethodTOTP})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	s.rdb.Del(ctx, totpPendingKey(uid))
	logrus.WithField("user_id", uid).Info("Authenticator app enabled")
	return nil
}

// Validate checks a code against the user's active secret
func (s *TOTPService) Validate(user *domain.User, code string) bool {
	return user.TOTPSecret != "" && totp.Validate(code, user.TOTPSecret)
}

// Disable turns TOTP off after checking a current code
func (s *TOTPService) Disable(ctx context.Context, user *domain.User, code string) error {
	if user.OTPMethod != domain.OTPMethodTOTP {
		return fmt.Errorf("authenticator not enabled: %w", ErrNotFound)
	}
	if !s.Validate(user, code) {
		return fmt.Errorf("invalid code: %w", ErrUnauthorized)
	}
	return s.db.WithContext(ctx).Model(user).
		Updates(map[string]any{"totp_secret": "", "otp_method": domain.OTPMethodNone}).Error
}
