package api

import (
	"net/http" // HTTP status codes

	"content_platform/internal/logging" // Request scoped logger

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for role changes
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"` // New role
}

// ListUsersHandler returns a page of users, optionally filtered by ?search=
func ListUsersHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c) // page and page_size within limits
		users, total, err := s.Users.List(c.Request.Context(), c.Query("search"), page)
		if err != nil {
			fail(c, err) // Suspicious search terms are a 400
			return
		}
		respondPage(c, users, total, page)
	}
}

// SetUserRoleHandler promotes or demotes a user. Live sessions pick up the new role at once.
func SetUserRoleHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req RoleRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		if id == currentUserID(c) {
			// Admins cannot lock themselves out
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Cannot change your own role"})
			return
		}
		ctx := c.Request.Context()
		user, err := s.Users.SetRole(ctx, id, req.Role)
		if err != nil {
			fail(c, err)
			return
		}
		if err := s.Sessions.SetRole(ctx, id, req.Role); err != nil {
			fail(c, err)
			return
		}
		logging.FromContext(c).WithField("target_user_id", id).Info("Role updated by admin")
		respond(c, http.StatusOK, user)
	}
}

// DeleteUserHandler removes an account and ends its sessions
func DeleteUserHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if id == currentUserID(c) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Cannot delete your own account"})
			return
		}
		ctx := c.Request.Context()
		if err := s.Users.Delete(ctx, id); err != nil {
			fail(c, err)
			return
		}
		if _, err := s.Sessions.RevokeAll(ctx, id); err != nil {
			logging.FromContext(c).WithError(err).WithField("target_user_id", id).Warn("Failed to revoke sessions of deleted user")
		}
		c.Status(http.StatusNoContent)
	}
}
