// Package app wires configuration, infrastructure and services together.
package app

import (
	"io"
	"time"

	"content_platform/internal/api"
	"content_platform/internal/config"
	"content_platform/internal/geo"
	"content_platform/internal/mail"
	"content_platform/internal/middleware"
	"content_platform/internal/moderation"
	"content_platform/internal/push"
	"content_platform/internal/service"
	"content_platform/internal/sms"
	"content_platform/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collaborators are the outbound integrations. Each has a local fallback.
type Collaborators struct {
	Mailer     mail.Sender
	SMS        sms.Sender
	Push       push.Notifier
	Storage    storage.Storage
	Locator    geo.Locator
	Classifier moderation.Classifier

	closers []io.Closer
}

// Close releases resources such as the GeoIP database
func (c *Collaborators) Close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
}

// NewCollaborators picks real integrations when configured and logs which ones fall back
func NewCollaborators(cfg *config.Config, db *gorm.DB) (*Collaborators, error) {
	co := &Collaborators{
		Mailer:     mail.LogSender{},
		SMS:        sms.LogSender{},
		Push:       push.Noop{},
		Locator:    geo.NoopLocator{},
		Classifier: moderation.NoopClassifier{},
	}
	if cfg.SMTPEnabled() {
		co.Mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.MailFrom,
		})
	} else {
		logrus.Warn("SMTP not configured, emails are only logged")
	}
	if cfg.TwilioEnabled() {
		co.SMS = sms.NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
	} else {
		logrus.Warn("Twilio not configured, SMS codes are only logged")
	}
	if cfg.VAPIDPrivateKey != "" {
		co.Push = push.NewWebPushNotifier(db, push.VAPIDConfig{
			PublicKey: cfg.VAPIDPublicKey, PrivateKey: cfg.VAPIDPrivateKey, Subject: cfg.VAPIDSubject,
		})
	}
	if cfg.S3Bucket != "" {
		s3, err := storage.NewS3Storage(storage.S3Config{
			Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey, SecretKey: cfg.S3SecretKey, PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		co.Storage = s3
	} else {
		logrus.Warn("S3 not configured, uploads are kept in memory")
		mem := storage.NewMemoryStorage()
		mem.BaseURL = cfg.BaseURL + "/media"
		co.Storage = mem
	}
	if cfg.GeoIPPath != "" {
		locator, err := geo.OpenMaxMind(cfg.GeoIPPath)
		if err != nil {
			return nil, err
		}
		co.Locator = locator
		co.closers = append(co.closers, locator)
	}
	if cfg.ModerationURL != "" {
		co.Classifier = moderation.NewHTTPClassifier(cfg.ModerationURL, cfg.ModerationTimeout)
	}
	return co, nil
}

// Build constructs every service and the handler bundle
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, co *Collaborators) *api.Services {
	users := service.NewUserService(db)
	posts := service.NewPostService(db, rdb)
	campaigns := service.NewCampaignService(db, co.Mailer, cfg.BaseURL)
	subscriptions := service.NewSubscriptionService(db, co.Mailer, cfg.BaseURL)
	comments := service.NewCommentService(db, co.Classifier, service.ModerationThresholds{
		Review: cfg.ModerationReview, Spam: cfg.ModerationSpam,
	})
	contacts := service.NewContactService(db, co.Mailer, co.Push, cfg.AdminEmails, cfg.BaseURL)
	analytics := service.NewAnalyticsService(db, rdb, co.Locator, cfg.IPHashSalt)

	jobs := service.DefaultJobs(service.JobDeps{
		Posts:         posts,
		Campaigns:     campaigns,
		Subscriptions: subscriptions,
		Comments:      comments,
		Contacts:      contacts,
		Analytics:     analytics,
		Mailer:        co.Mailer,
		AdminEmails:   cfg.AdminEmails,
		ViewRetention: cfg.ViewRetention,
	})

	services := &api.Services{
		DB:       db,
		Redis:    rdb,
		Users:    users,
		Sessions: service.NewUserSessionService(rdb, cfg.JWTSecret, cfg.SessionTTL),
		OTP: service.NewOTPService(rdb, db, co.Mailer, co.SMS, service.OTPConfig{
			TTL: cfg.OTPTTL, MaxAttempts: cfg.OTPMaxAttempts,
		}),
		TOTP: service.NewTOTPService(db, rdb, "Content Platform"),
		SSO: service.NewSSOService(rdb, users, service.SSOCredentials{
			BaseURL:            cfg.BaseURL,
			GitHubClientID:     cfg.GitHubClientID,
			GitHubClientSecret: cfg.GitHubClientSecret,
			GoogleClientID:     cfg.GoogleClientID,
			GoogleClientSecret: cfg.GoogleClientSecret,
		}),
		Posts:         posts,
		Categories:    service.NewCategoryService(db, rdb),
		Comments:      comments,
		Projects:      service.NewProjectService(db, rdb),
		Testimonials:  service.NewTestimonialService(db),
		Contacts:      contacts,
		Subscriptions: subscriptions,
		Campaigns:     campaigns,
		Media:         service.NewMediaService(db, co.Storage, cfg.MediaMaxBytes),
		Analytics:     analytics,
		Push:          service.NewPushSubscriptionService(db),
		Cron:          service.NewCronService(jobs),

		Limiter: middleware.NewRateLimiter(rdb),
		Limits: api.Limits{
			Global: middleware.Limit{PerMinute: cfg.RateLimitGlobal},
			Auth:   middleware.Limit{PerMinute: cfg.RateLimitAuth},
			Forms:  middleware.Limit{PerMinute: cfg.RateLimitForms},
		},
		Cookies:      api.Cookies{Session: cfg.SessionCookie, Secure: cfg.SecureCookies},
		CSRFSecret:   cfg.CSRFSecret,
		CronSecret:   cfg.CronSecret,
		StepUpWindow: cfg.StepUpWindow,
		BaseURL:      cfg.BaseURL,
		VAPIDPublic:  cfg.VAPIDPublicKey,
	}
	if mem, ok := co.Storage.(*storage.MemoryStorage); ok {
		services.Files = mem // Nothing else serves in-memory uploads
	}
	return services
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server and cron jobs
const ShutdownTimeout = 15 * time.Second
