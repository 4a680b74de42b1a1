package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/mail"
	"content_platform/internal/sms"
	"content_platform/internal/utils"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OTP purposes; a code issued for one purpose cannot be used for another
const (
	PurposeLogin       = "login"
	PurposeStepUp      = "step_up"
	PurposeVerifyEmail = "verify_email"
	PurposeVerifyPhone = "verify_phone"
)

// OTP delivery channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelTOTP  = "totp"
)

const (
	otpCodeLength  = 6
	otpCooldown    = 60 * time.Second
	totpReplayTTL  = 90 * time.Second
	otpFieldUser   = "user_id"
	otpFieldHash   = "hash"
	otpFieldTries  = "attempts"
	otpFieldMethod = "channel"
	otpFieldReason = "purpose"
)

// Challenge is a pending one-time password verification
type Challenge struct {
	ID        string    `json:"challenge_id"`
	Channel   string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPConfig tunes OTP behaviour
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	AppName     string
}

// OTPService issues and verifies one-time passwords. Codes live in Redis as
// SHA-256 hashes with a TTL and an attempt counter.
type OTPService struct {
	rdb   redis.Cmdable
	db    *gorm.DB
	mail  mail.Sender
	sms   sms.Sender
	cfg   OTPConfig
	clock func() time.Time
}

// NewOTPService creates an OTPService
func NewOTPService(rdb redis.Cmdable, db *gorm.DB, mailer mail.Sender, texter sms.Sender, cfg OTPConfig) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.AppName == "" {
		cfg.AppName = "Content Platform"
	}
	return &OTPService{rdb: rdb, db: db, mail: mailer, sms: texter, cfg: cfg, clock: time.Now}
}

func otpKey(id string) string { return "otp:" + id }

// countMiss bumps the attempt counter only while the challenge still exists
var countMiss = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

// recordMiss returns the attempt count after a wrong code, or -1 when the challenge expired meanwhile
func (s *OTPService) recordMiss(ctx context.Context, key string) (int64, error) {
	return countMiss.Run(ctx, s.rdb, []string{key}, otpFieldTries).Int64()
}

func otpCooldownKey(uid uint, purpose string) string {
	return "otp:cooldown:" + strconv.FormatUint(uint64(uid), 10) + ":" + purpose
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ChannelFor picks the delivery channel for a user's configured method
func ChannelFor(user *domain.User) string {
	switch user.OTPMethod {
	case domain.OTPMethodSMS:
		return ChannelSMS
	case domain.OTPMethodTOTP:
		return ChannelTOTP
	default:
		return ChannelEmail
	}
}

// Issue creates a challenge for user and delivers the code over channel
func (s *OTPService) Issue(ctx context.Context, user *domain.User, purpose, channel string) (*Challenge, error) {
	switch purpose {
	case PurposeLogin, PurposeStepUp, PurposeVerifyEmail, PurposeVerifyPhone:
	default:
		return nil, invalid("purpose", "unknown OTP purpose")
	}
	switch channel {
	case ChannelEmail:
	case ChannelSMS:
		if user.Phone == "" {
			return nil, invalid("method", "no phone number on file")
		}
	case ChannelTOTP:
		if user.TOTPSecret == "" {
			return nil, invalid("method", "authenticator app not enrolled")
		}
	default:
		return nil, invalid("method", "unknown OTP channel")
	}

	if channel != ChannelTOTP {
		ok, err := s.rdb.SetNX(ctx, otpCooldownKey(user.ID, purpose), 1, otpCooldown).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("wait before requesting another code: %w", ErrTooManyAttempts)
		}
	}

	ch := &Challenge{ID: uuid.NewString(), Channel: channel, ExpiresAt: s.clock().Add(s.cfg.TTL)}
	fields := map[string]any{
		otpFieldUser:   user.ID,
		otpFieldReason: purpose,
		otpFieldMethod: channel,
		otpFieldTries:  0,
	}
	var code string
	if channel != ChannelTOTP {
		var err error
		if code, err = utils.RandomDigits(otpCodeLength); err != nil {
			return nil, err
		}
		fields[otpFieldHash] = hashCode(code)
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, otpKey(ch.ID), fields)
	pipe.Expire(ctx, otpKey(ch.ID), s.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store otp challenge: %w", err)
	}

	if code != "" {
		if err := s.deliver(ctx, user, channel, code); err != nil {
			s.rdb.Del(ctx, otpKey(ch.ID), otpCooldownKey(user.ID, purpose)) // Let the user retry right away
			return nil, err
		}
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "purpose": purpose, "channel": channel}).Info("OTP challenge issued")
	return ch, nil
}

func (s *OTPService) deliver(ctx context.Context, user *domain.User, channel, code string) error {
	minutes := int(s.cfg.TTL.Minutes())
	switch channel {
	case ChannelSMS:
		body := fmt.Sprintf("%s verification code: %s. Expires in %d minutes.", s.cfg.AppName, code, minutes)
		if err := s.sms.Send(ctx, user.Phone, body); err != nil {
			return fmt.Errorf("deliver sms code: %w", err)
		}
	default:
		html, err := mail.Render("otp", map[string]any{"Code": code, "Minutes": minutes})
		if err != nil {
			return err
		}
		err = s.mail.Send(ctx, mail.Message{
			To:      []string{user.Email},
			Subject: s.cfg.AppName + " verification code",
			Text:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
			HTML:    html,
		})
		if err != nil {
			return fmt.Errorf("deliver email code: %w", err)
		}
	}
	return nil
}

// Verify checks code against the challenge and returns the user id on success.
// A challenge is single use and is burned after MaxAttempts wrong codes.
func (s *OTPService) Verify(ctx context.Context, challengeID, code, purpose string) (uint, error) {
	key := otpKey(challengeID)
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("challenge expired or unknown: %w", ErrUnauthorized)
	}
	if fields[otpFieldReason] != purpose {
		return 0, fmt.Errorf("challenge purpose mismatch: %w", ErrUnauthorized)
	}
	uid64, err := strconv.ParseUint(fields[otpFieldUser], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt challenge: %w", err)
	}
	uid := uint(uid64)

	ok, err := s.check(ctx, uid, fields, code)
	if err != nil {
		return 0, err
	}
	if !ok {
		tries, err := s.recordMiss(ctx, key)
		if err != nil {
			return 0, err
		}
		if tries < 0 {
			return 0, fmt.Errorf("challenge expired or unknown: %w", ErrUnauthorized)
		}
		if int(tries) >= s.cfg.MaxAttempts {
			s.rdb.Del(ctx, key)
			logrus.WithFields(logrus.Fields{"user_id": uid, "purpose": purpose}).Warn("OTP challenge burned after too many attempts")
			return 0, fmt.Errorf("challenge locked: %w", ErrTooManyAttempts)
		}
		return 0, fmt.Errorf("invalid code: %w", ErrUnauthorized)
	}
	// Whoever deletes the key consumes the challenge
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("challenge already used: %w", ErrUnauthorized)
	}
	return uid, nil
}

func (s *OTPService) check(ctx context.Context, uid uint, fields map[string]string, code string) (bool, error) {
	if fields[otpFieldMethod] != ChannelTOTP {
		want := fields[otpFieldHash]
		return subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(want)) == 1, nil
	}
	var user domain.User
	if err := s.db.WithContext(ctx).Select("id", "totp_secret").First(&user, uid).Error; err != nil {
		return false, notFound(err, "user")
	}
	if user.TOTPSecret == "" || !totp.Validate(code, user.TOTPSecret) {
		return false, nil
	}
	// A TOTP code is accepted once per user within its validity window
	fresh, err := s.rdb.SetNX(ctx, "totp:used:"+strconv.FormatUint(uint64(uid), 10)+":"+code, 1, totpReplayTTL).Result()
	if err != nil {
		return false, err
	}
	return fresh, nil
}
