package logging

import (
	"content_platform/internal/config" // Application configuration
	"io"                               // Writers
	"os"                               // Stdout
	"time"                             // Request latency

	"github.com/gin-gonic/gin"        // Gin web framework
	"github.com/google/uuid"          // Request ids
	"github.com/natefinch/lumberjack" // Rotating log files
	"github.com/sirupsen/logrus"      // Logrus for structured logging
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Setup configures the global logrus logger
func Setup(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel // Unknown level falls back to info
	}
	logrus.SetLevel(level)

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}
	logrus.SetOutput(out)
}

// RequestLogger logs one entry per request and tags it with a request id
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader) // Reuse an upstream id when present
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next() // Run the handler chain

		entry := logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// FromContext returns a logger entry carrying the request id
func FromContext(c *gin.Context) *logrus.Entry {
	if id, ok := c.Get("requestID"); ok {
		return logrus.WithField("request_id", id)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
