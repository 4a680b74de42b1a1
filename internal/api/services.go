package api

import (
	"time" // Durations

	"content_platform/internal/middleware" // Rate limiter
	"content_platform/internal/service"    // Business logic
	"content_platform/internal/storage"    // In-memory uploads

	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Cookies configures the session and CSRF cookies
type Cookies struct {
	Session string // Session cookie name
	Secure  bool   // Secure flag
	Domain  string // Optional cookie domain
}

// Limits are the per-bucket request budgets
type Limits struct {
	Global middleware.Limit // Everything else
	Auth   middleware.Limit // Login, register, OTP
	Forms  middleware.Limit // Public submissions
}

// Services bundles everything the handlers need
type Services struct {
	DB    *gorm.DB      // Health checks
	Redis redis.Cmdable // Health checks

	Users         *service.UserService
	Sessions      *service.UserSessionService
	OTP           *service.OTPService
	TOTP          *service.TOTPService
	SSO           *service.SSOService
	Posts         *service.PostService
	Categories    *service.CategoryService
	Comments      *service.CommentService
	Projects      *service.ProjectService
	Testimonials  *service.TestimonialService
	Contacts      *service.ContactService
	Subscriptions *service.SubscriptionService
	Campaigns     *service.CampaignService
	Media         *service.MediaService
	Analytics     *service.AnalyticsService
	Push          *service.PushSubscriptionService
	Cron          *service.CronService
	Files         *storage.MemoryStorage // Set when uploads are kept in memory and served by the API

	Limiter      *middleware.RateLimiter
	Limits       Limits
	Cookies      Cookies
	CSRFSecret   string
	CronSecret   string
	StepUpWindow time.Duration
	BaseURL      string // Front-end origin used for SSO redirects
	VAPIDPublic  string // Web push public key handed to browsers
}
