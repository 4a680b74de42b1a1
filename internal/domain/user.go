package domain

import "time"

// Roles
const (
	RoleUser  = "user"  // Regular account
	RoleAdmin = "admin" // CMS administrator
)

// OTP methods a user can require at login
const (
	OTPMethodNone  = ""      // Password only
	OTPMethodEmail = "email" // Code sent by email
	OTPMethodSMS   = "sms"   // Code sent by SMS
	OTPMethodTOTP  = "totp"  // Authenticator app
)

// User Model
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`                                      // Primary key
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`                // Unique, lowercased email
	Username      string    `gorm:"uniqueIndex;size:64;not null" json:"username"`              // Unique username
	Name          string    `gorm:"size:128" json:"name"`                                      // Display name
	Password      string    `gorm:"size:255" json:"-"`                                         // Hashed password, empty for SSO-only accounts
	Role          string    `gorm:"size:16;default:user;not null" json:"role"`                 // Role: user or admin
	Phone         string    `gorm:"size:32" json:"phone,omitempty"`                            // E.164 phone for SMS OTP
	OTPMethod     string    `gorm:"size:16" json:"otp_method"`                                 // Second factor required at login
	TOTPSecret    string    `gorm:"size:64" json:"-"`                                          // Base32 TOTP secret
	SSOProvider   string    `gorm:"size:32;index:idx_users_sso" json:"sso_provider,omitempty"` // github, google
	SSOSubject    string    `gorm:"size:128;index:idx_users_sso" json:"-"`                     // Provider user id
	EmailVerified bool      `gorm:"default:false" json:"email_verified"`                       // Email ownership confirmed
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user can access the CMS
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
