package api

import (
	"net/http" // HTTP status codes

	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for profile updates; omitted fields stay unchanged
type ProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=128"`          // Display name
	Username *string `json:"username" binding:"omitempty,min=3,max=32"` // Public handle
	Phone    *string `json:"phone" binding:"omitempty,phone"`           // E.164, empty string clears it
}

// Request struct for browser push subscriptions
type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"` // Push service endpoint
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"` // Client public key
		Auth   string `json:"auth" binding:"required"`   // Auth secret
	} `json:"keys"`
}

// Request struct for removing a push subscription
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"` // Endpoint to forget
}

// UpdateProfileHandler edits the current user's profile
func UpdateProfileHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProfileRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		user, err := s.Users.UpdateProfile(c.Request.Context(), currentUserID(c), service.ProfileInput{
			Name: req.Name, Username: req.Username, Phone: req.Phone,
		})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, user)
	}
}

// PushKeyHandler returns the VAPID public key browsers subscribe with
func PushKeyHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"public_key": s.VAPIDPublic})
	}
}

// PushSubscribeHandler registers a browser for web push notifications
func PushSubscribeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PushSubscriptionRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		sub, err := s.Push.Subscribe(c.Request.Context(), currentUserID(c), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, sub)
	}
}

// PushUnsubscribeHandler removes a browser subscription of the current user
func PushUnsubscribeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PushUnsubscribeRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		if err := s.Push.Unsubscribe(c.Request.Context(), currentUserID(c), req.Endpoint); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
