package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // Path parameters

	"content_platform/internal/domain"     // Roles
	"content_platform/internal/logging"    // Request scoped logger
	"content_platform/internal/middleware" // Context keys
	"content_platform/internal/service"    // Sentinel errors
	"content_platform/internal/utils"      // Pagination

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/go-playground/validator/v10" // Binding errors
)

// Meta describes a page of results
type Meta struct {
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total number of rows
	TotalPages int   `json:"total_pages"` // Total pages
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func respondPage(c *gin.Context, data any, total int64, page utils.Page) {
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": Meta{Page: page.Page, PageSize: page.PageSize, Total: total, TotalPages: utils.TotalPages(total, page.PageSize)},
	})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Unexpected errors are logged and hidden from the client.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c).WithError(err).Error("Request failed")
		c.AbortWithStatusJSON(status, gin.H{"message": "Internal server error"})
		return
	}
	body := gin.H{"message": err.Error()}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["message"] = "Validation failed"
		body["errors"] = verr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes and validates a JSON body, writing a 400 on failure
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = describe(fe)
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "errors": fields})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

// idParam reads a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func pageQuery(c *gin.Context) utils.Page {
	return utils.ParsePagination(c.Query("page"), c.Query("page_size"))
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(middleware.ContextUserID) // Set by SessionAuth
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.ContextRole) == domain.RoleAdmin
}
