package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)
	phonePattern    = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// Password length bounds; bcrypt ignores bytes after 72
const (
	MinPasswordLen = 8
	MaxPasswordLen = 72
)

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Email    string
	Username string
	Name     string
	Password string
}

// ProfileInput holds editable profile fields; nil means unchanged
type ProfileInput struct {
	Name     *string
	Username *string
	Phone    *string
}

// UserService manages accounts
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// NormalizeEmail lowercases and trims an address and checks its shape
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "must be a valid email address")
	}
	return email, nil
}

// Register creates a password account
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username", "must be 3-32 characters of a-z, 0-9 or _")
	}
	if len(in.Password) < MinPasswordLen || len(in.Password) > MaxPasswordLen {
		return nil, invalid("password", fmt.Sprintf("must be %d-%d characters", MinPasswordLen, MaxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:    email,
		Username: username,
		Name:     strings.TrimSpace(in.Name),
		Password: string(hash),
		Role:     domain.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("email or username already registered: %w", ErrConflict)
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return user, nil
}

// Authenticate checks email and password
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, fmt.Errorf("account uses single sign-on: %w", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	return &user, nil
}

// GetByID loads a user
func (s *UserService) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// GetByEmail loads a user by address
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// List returns a page of users, optionally filtered by a search term
func (s *UserService) List(ctx context.Context, search string, page utils.Page) ([]domain.User, int64, error) {
	if utils.ContainsSQLInjection(search) {
		return nil, 0, invalid("search", "contains forbidden characters")
	}
	search = strings.ToLower(strings.TrimSpace(search))
	return listPage[domain.User](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		if search == "" {
			return tx
		}
		like := "%" + search + "%"
		return tx.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ? OR LOWER(name) LIKE ?", like, like, like)
	}, "id asc", page)
}

// UpdateProfile changes name, username or phone
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		if !usernamePattern.MatchString(username) {
			return nil, invalid("username", "must be 3-32 characters of a-z, 0-9 or _")
		}
		updates["username"] = username
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return nil, invalid("phone", "must be in E.164 format")
		}
		if phone == "" && user.OTPMethod == domain.OTPMethodSMS {
			return nil, invalid("phone", "required while SMS verification is enabled")
		}
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("username taken: %w", ErrConflict)
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ChangePassword replaces the password after checking the current one.
// SSO-only accounts may set a first password without a current one.
func (s *UserService) ChangePassword(ctx context.Context, id uint, current, next string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
			return fmt.Errorf("current password does not match: %w", ErrUnauthorized)
		}
	}
	if len(next) < MinPasswordLen || len(next) > MaxPasswordLen {
		return invalid("new_password", fmt.Sprintf("must be %d-%d characters", MinPasswordLen, MaxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(user).Update("password", string(hash)).Error
}

// SetRole promotes or demotes a user
func (s *UserService) SetRole(ctx context.Context, id uint, role string) (*domain.User, error) {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, invalid("role", "must be user or admin")
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	logrus.WithFields(logrus.Fields{"user_id": id, "role": role}).Info("User role changed")
	return user, nil
}

// SetOTPMethod chooses the second factor required at login
func (s *UserService) SetOTPMethod(ctx context.Context, id uint, method string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.OTPMethod == domain.OTPMethodTOTP {
		return fmt.Errorf("authenticator app is active, disable it with a code first: %w", ErrConflict)
	}
	switch method {
	case domain.OTPMethodNone, domain.OTPMethodEmail:
	case domain.OTPMethodSMS:
		if user.Phone == "" {
			return invalid("method", "add a phone number before enabling SMS verification")
		}
	case domain.OTPMethodTOTP:
		return invalid("method", "enable the authenticator app through TOTP enrollment")
	default:
		return invalid("method", "must be email, sms or none")
	}
	return s.db.WithContext(ctx).Model(user).Update("otp_method", method).Error
}

// MarkEmailVerified records that the user proved ownership of their address
func (s *UserService) MarkEmailVerified(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("email_verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// Delete removes a user account
func (s *UserService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// FindOrCreateSSO resolves an identity provider account to a local user.
// An existing account with the same email is linked to the provider.
func (s *UserService) FindOrCreateSSO(ctx context.Context, provider, subject, email, name string) (*domain.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var user domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("sso_provider = ? AND sso_subject = ?", provider, subject).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			return tx.Model(&user).Updates(map[string]any{
				"sso_provider": provider, "sso_subject": subject, "email_verified": true,
			}).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		user = domain.User{
			Email:         email,
			Username:      s.uniqueUsername(tx, email),
			Name:          name,
			Role:          domain.RoleUser,
			SSOProvider:   provider,
			SSOSubject:    subject,
			EmailVerified: true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// uniqueUsername derives a free username from the local part of an email
func (s *UserService) uniqueUsername(tx *gorm.DB, email string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, strings.SplitN(email, "@", 2)[0])
	if len(base) < 3 {
		base += "_user"
	}
	if len(base) > 24 {
		base = base[:24]
	}
	candidate := base
	for i := 1; ; i++ {
		var n int64
		tx.Model(&domain.User{}).Where("username = ?", candidate).Count(&n)
		if n == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}
