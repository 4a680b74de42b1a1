package api

import (
	"net/http" // HTTP status codes
	"net/url"  // Redirect query escaping
	"strings"  // String manipulation

	"content_platform/internal/domain"     // Importing domain models
	"content_platform/internal/logging"    // Request scoped logger
	"content_platform/internal/middleware" // CSRF tokens and context keys
	"content_platform/internal/service"    // Business logic

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// Request structs
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`           // Account email
	Username string `json:"username" binding:"required,min=3,max=32"` // Public handle
	Name     string `json:"name" binding:"max=128"`                   // Display name
	Password string `json:"password" binding:"required,min=8,max=72"` // Plain password, hashed by the service
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"` // Account email
	Password string `json:"password" binding:"required"`    // Plain password
}

// Request struct for OTP verification
type VerifyOTPRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`                              // Challenge returned by login or step-up
	Code        string `json:"code" binding:"required,len=6,numeric"`                        // Six digit code
	Purpose     string `json:"purpose" binding:"omitempty,oneof=login step_up verify_email"` // Defaults to login
}

// Request struct for OTP codes on an authenticated session
type CodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"` // Six digit code
}

// Request struct for choosing the login second factor
type OTPMethodRequest struct {
	Method string `json:"method" binding:"required,oneof=email sms none"` // none disables OTP
}

// Request struct for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`                             // Empty for SSO-only accounts
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"` // Replacement password
}

func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// setSessionCookie writes the HttpOnly session cookie
func setSessionCookie(c *gin.Context, s *Services, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Cookies.Session, token, int(s.Sessions.TTL().Seconds()), "/", s.Cookies.Domain, s.Cookies.Secure, true)
}

func clearSessionCookie(c *gin.Context, s *Services) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Cookies.Session, "", -1, "/", s.Cookies.Domain, s.Cookies.Secure, true)
}

// startSession creates a session and returns the user with the token.
// Browsers use the cookie, API clients the token.
func startSession(c *gin.Context, s *Services, status int, user *domain.User, otpVerified bool) {
	sess, token, err := s.Sessions.Create(c.Request.Context(), user, clientMeta(c), otpVerified)
	if err != nil {
		fail(c, err)
		return
	}
	setSessionCookie(c, s, token)
	logging.FromContext(c).WithFields(logrus.Fields{"user_id": user.ID, "session_id": sess.ID}).Info("Session started")
	respond(c, status, gin.H{"user": user, "token": token, "expires_in": int(s.Sessions.TTL().Seconds())})
}

func currentSession(c *gin.Context) *service.Session {
	v, _ := c.Get(middleware.ContextSession)
	sess, _ := v.(*service.Session)
	return sess
}

// RegisterHandler creates an account and signs it in
func RegisterHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		user, err := s.Users.Register(c.Request.Context(), service.RegisterInput{
			Email: req.Email, Username: req.Username, Name: req.Name, Password: req.Password,
		})
		if err != nil {
			fail(c, err) // Duplicate email or username is a conflict
			return
		}
		startSession(c, s, http.StatusCreated, user, false)
	}
}

// LoginHandler checks the password and either starts a session or issues an OTP challenge
func LoginHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		user, err := s.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			logging.FromContext(c).WithField("email", strings.ToLower(req.Email)).Warn("Failed login")
			fail(c, err)
			return
		}
		if user.OTPMethod == domain.OTPMethodNone {
			startSession(c, s, http.StatusOK, user, false) // Password only
			return
		}
		// Second factor required; TOTP challenges do not send anything
		ch, err := s.OTP.Issue(c.Request.Context(), user, service.PurposeLogin, service.ChannelFor(user))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusAccepted, ch)
	}
}

// VerifyOTPHandler completes a login, a step-up or an email verification
func VerifyOTPHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyOTPRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		if req.Purpose == "" {
			req.Purpose = service.PurposeLogin
		}
		ctx := c.Request.Context()
		sess := currentSession(c) // Set by OptionalSessionAuth
		if req.Purpose != service.PurposeLogin && sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		uid, err := s.OTP.Verify(ctx, req.ChallengeID, req.Code, req.Purpose)
		if err != nil {
			fail(c, err)
			return
		}
		switch req.Purpose {
		case service.PurposeLogin:
			user, err := s.Users.GetByID(ctx, uid)
			if err != nil {
				fail(c, err)
				return
			}
			startSession(c, s, http.StatusOK, user, true)
		case service.PurposeStepUp:
			if uid != sess.UserID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Challenge belongs to another account"})
				return
			}
			updated, err := s.Sessions.MarkOTPVerified(ctx, sess.ID)
			if err != nil {
				fail(c, err)
				return
			}
			respond(c, http.StatusOK, updated)
		case service.PurposeVerifyEmail:
			if uid != sess.UserID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Challenge belongs to another account"})
				return
			}
			if err := s.Users.MarkEmailVerified(ctx, uid); err != nil {
				fail(c, err)
				return
			}
			respond(c, http.StatusOK, gin.H{"email_verified": true})
		}
	}
}

// issueFor sends a challenge for purpose over the user's preferred channel
func issueFor(s *Services, purpose string, channel func(*domain.User) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.Users.GetByID(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		ch, err := s.OTP.Issue(c.Request.Context(), user, purpose, channel(user))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusAccepted, ch)
	}
}

// StepUpHandler issues a step-up challenge for the current user
func StepUpHandler(s *Services) gin.HandlerFunc {
	return issueFor(s, service.PurposeStepUp, service.ChannelFor)
}

// VerifyEmailHandler mails a code proving ownership of the account address
func VerifyEmailHandler(s *Services) gin.HandlerFunc {
	return issueFor(s, service.PurposeVerifyEmail, func(*domain.User) string { return service.ChannelEmail })
}

// LogoutHandler ends the current session
func LogoutHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Sessions.Revoke(c.Request.Context(), currentSession(c)); err != nil {
			fail(c, err)
			return
		}
		clearSessionCookie(c, s)
		c.Status(http.StatusNoContent)
	}
}

// LogoutAllHandler ends every session of the current user
func LogoutAllHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.Sessions.RevokeAll(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		clearSessionCookie(c, s)
		respond(c, http.StatusOK, gin.H{"revoked": n})
	}
}

// MeHandler returns the current user
func MeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.Users.GetByID(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"user": user, "session": currentSession(c)})
	}
}

// SessionsHandler lists the live sessions of the current user
func SessionsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := s.Sessions.List(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, sessions)
	}
}

// CSRFHandler hands out a CSRF token in a cookie readable by the front-end
func CSRFHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := middleware.NewCSRFToken(s.CSRFSecret)
		if err != nil {
			fail(c, err)
			return
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(middleware.CSRFCookie, token, int(s.Sessions.TTL().Seconds()), "/", s.Cookies.Domain, s.Cookies.Secure, false)
		respond(c, http.StatusOK, gin.H{"csrf_token": token})
	}
}

// TOTPEnrollHandler starts authenticator app enrollment
func TOTPEnrollHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.Users.GetByID(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		enrollment, err := s.TOTP.BeginEnrollment(c.Request.Context(), user)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, enrollment)
	}
}

// TOTPConfirmHandler activates the pending authenticator secret
func TOTPConfirmHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CodeRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		if err := s.TOTP.ConfirmEnrollment(c.Request.Context(), currentUserID(c), req.Code); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"otp_method": domain.OTPMethodTOTP})
	}
}

// TOTPDisableHandler turns the authenticator app off
func TOTPDisableHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CodeRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		user, err := s.Users.GetByID(c.Request.Context(), currentUserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		if err := s.TOTP.Disable(c.Request.Context(), user, req.Code); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"otp_method": "none"})
	}
}

// OTPMethodHandler chooses email, SMS or no second factor at login
func OTPMethodHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OTPMethodRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		method := req.Method
		if method == "none" {
			method = domain.OTPMethodNone // Stored as empty
		}
		if err := s.Users.SetOTPMethod(c.Request.Context(), currentUserID(c), method); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"otp_method": req.Method})
	}
}

// ChangePasswordHandler replaces the password and signs out other sessions
func ChangePasswordHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		ctx := c.Request.Context()
		uid := currentUserID(c)
		if err := s.Users.ChangePassword(ctx, uid, req.CurrentPassword, req.NewPassword); err != nil {
			fail(c, err)
			return
		}
		// Everything but the current session is revoked
		sessions, err := s.Sessions.List(ctx, uid)
		if err != nil {
			fail(c, err)
			return
		}
		current := c.GetString(middleware.ContextSessionID)
		for i := range sessions {
			if sessions[i].ID == current {
				continue
			}
			if err := s.Sessions.Revoke(ctx, &sessions[i]); err != nil {
				fail(c, err)
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

// SSOStartHandler redirects to the identity provider
func SSOStartHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := s.SSO.AuthURL(c.Request.Context(), c.Param("provider"))
		if err != nil {
			fail(c, err) // Unknown provider is a 404
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

// SSOCallbackHandler finishes the provider login and returns to the front-end
func SSOCallbackHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := c.Param("provider")
		if e := c.Query("error"); e != "" {
			// User declined consent at the provider
			c.Redirect(http.StatusFound, s.BaseURL+"/login?error="+url.QueryEscape(e))
			return
		}
		user, err := s.SSO.Callback(c.Request.Context(), provider, c.Query("state"), c.Query("code"))
		if err != nil {
			logging.FromContext(c).WithError(err).WithField("provider", provider).Warn("SSO login failed")
			c.Redirect(http.StatusFound, s.BaseURL+"/login?error=sso_failed")
			return
		}
		_, token, err := s.Sessions.Create(c.Request.Context(), user, clientMeta(c), false)
		if err != nil {
			fail(c, err)
			return
		}
		setSessionCookie(c, s, token)
		c.Redirect(http.StatusFound, s.BaseURL+"/")
	}
}
