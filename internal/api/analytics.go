package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Heatmap precision
	"time"     // Date ranges

	"content_platform/internal/geo"     // Heatmap precision bounds
	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for page view beacons
type ViewRequest struct {
	Path     string `json:"path" binding:"required,startswith=/,max=512"` // Page path
	Referrer string `json:"referrer" binding:"max=512"`                   // document.referrer
}

// parseTime accepts RFC 3339 timestamps or plain dates. Empty means zero.
func parseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// dateRange reads ?from= and ?to=; the service fills in the last 30 days when omitted
func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := parseTime(c.Query("from"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid from"})
		return from, from, false
	}
	to, ok := parseTime(c.Query("to"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid to"})
		return from, to, false
	}
	return from, to, true
}

// RecordViewHandler stores an anonymised page view
func RecordViewHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ViewRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		err := s.Analytics.RecordView(c.Request.Context(), service.ViewInput{
			Path: req.Path, Referrer: req.Referrer, IP: c.ClientIP(), UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// AnalyticsSummaryHandler reports traffic totals for a date range
func AnalyticsSummaryHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		summary, err := s.Analytics.Summary(c.Request.Context(), from, to)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, summary)
	}
}

// HeatmapHandler returns located views grouped into cells; ?precision= is 0 to 4 decimals
func HeatmapHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		precision := geo.DefaultPrecision
		if v, err := strconv.Atoi(c.Query("precision")); err == nil {
			precision = v // Clamped by the service
		}
		cells, err := s.Analytics.Heatmap(c.Request.Context(), from, to, precision)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"precision": geo.ClampPrecision(precision), "points": cells})
	}
}
