package api

import (
	"context"       // Health check timeout
	"crypto/subtle" // Constant time comparison
	"net/http"      // HTTP status codes
	"strings"       // Header parsing
	"time"          // Health check timeout

	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// CronHandler runs the jobs of one frequency. Serverless deployments call it from an external scheduler.
func CronHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.CronSecret == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Cron trigger disabled"})
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.CronSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid cron secret"})
			return
		}
		freq, err := service.ParseFrequency(c.Param("frequency"))
		if err != nil {
			fail(c, err) // Unknown frequency is a 404
			return
		}
		report, err := s.Cron.Run(c.Request.Context(), freq)
		if err != nil {
			fail(c, err)
			return
		}
		status := http.StatusOK
		if report.Failed() {
			status = http.StatusInternalServerError // Lets the scheduler retry or alert
		}
		respond(c, status, report)
	}
}

// HealthHandler reports whether the database and Redis answer
func HealthHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if sqlDB, err := s.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		respond(c, status, gin.H{"healthy": healthy, "checks": checks})
	}
}
