package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // Header parsing
	"time"     // Touch throttling

	"content_platform/internal/domain"  // Roles
	"content_platform/internal/service" // Session store

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// Context keys set by the session middleware
const (
	ContextUserID    = "userID"
	ContextSessionID = "sessionID"
	ContextRole      = "role"
	ContextSession   = "session"
)

// touchEvery limits how often a busy session is rewritten to extend its TTL
const touchEvery = time.Minute

// SessionToken extracts the session token from the Authorization header or the cookie
func SessionToken(c *gin.Context, cookieName string) (token string, bearer bool) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), true // API clients
	}
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v, false // Browsers
	}
	return "", false
}

func loadSession(c *gin.Context, sessions *service.UserSessionService, cookieName string) (*service.Session, bool) {
	token, _ := SessionToken(c, cookieName)
	if token == "" {
		return nil, false
	}
	sess, err := sessions.Authenticate(c.Request.Context(), token)
	if err != nil {
		return nil, false
	}
	if time.Since(sess.LastSeenAt) > touchEvery {
		if err := sessions.Touch(c.Request.Context(), sess); err != nil {
			logrus.WithError(err).WithField("session_id", sess.ID).Warn("Failed to extend session")
		}
	}
	c.Set(ContextUserID, sess.UserID) // Authenticated user
	c.Set(ContextSessionID, sess.ID)  // Current session
	c.Set(ContextRole, sess.Role)     // Role cached on the session
	c.Set(ContextSession, sess)       // Full session for step-up checks
	return sess, true
}

// SessionAuth requires a live session
func SessionAuth(sessions *service.UserSessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := loadSession(c, sessions, cookieName); !ok {
			// Missing, forged, expired or revoked
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		c.Next()
	}
}

// OptionalSessionAuth loads the session when there is one and never aborts
func OptionalSessionAuth(sessions *service.UserSessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadSession(c, sessions, cookieName)
		c.Next()
	}
}

// AdminOnly checks the role stored on the session. Role changes rewrite live sessions.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole) // Set by SessionAuth
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		if role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RequireStepUp demands an OTP verification within window on the current session
func RequireStepUp(window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ContextSession)
		sess, ok := v.(*service.Session)
		if !exists || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		if !sess.StepUpValid(time.Now(), window) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message":          "Recent verification required",
				"step_up_required": true,
			})
			return
		}
		c.Next()
	}
}
