package api

import (
	"content_platform/internal/middleware" // Auth, CSRF and rate limiting

	"github.com/gin-gonic/gin" // Gin web framework
)

// RegisterRoutes mounts every endpoint under /api
func RegisterRoutes(r *gin.Engine, s *Services) {
	auth := middleware.SessionAuth(s.Sessions, s.Cookies.Session)             // Requires a live session
	optional := middleware.OptionalSessionAuth(s.Sessions, s.Cookies.Session) // Loads a session when present
	strict := middleware.RateLimit(s.Limiter, "auth", s.Limits.Auth)          // Login, register, OTP
	forms := middleware.RateLimit(s.Limiter, "forms", s.Limits.Forms)         // Public submissions
	stepUp := middleware.RequireStepUp(s.StepUpWindow)                        // Destructive admin actions

	if s.Files != nil {
		r.GET("/media/*key", ServeMediaHandler(s.Files)) // Uploads without a bucket
	}

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.RateLimit(s.Limiter, "global", s.Limits.Global), middleware.CSRF(s.CSRFSecret))

	apiGroup.GET("/health", HealthHandler(s))         // Liveness and dependencies
	apiGroup.POST("/cron/:frequency", CronHandler(s)) // External scheduler trigger

	// Auth routes
	authGroup := apiGroup.Group("/auth")
	authGroup.GET("/csrf", CSRFHandler(s))                               // CSRF cookie
	authGroup.POST("/register", strict, RegisterHandler(s))              // Registration endpoint
	authGroup.POST("/login", strict, LoginHandler(s))                    // Login endpoint
	authGroup.POST("/otp/verify", strict, optional, VerifyOTPHandler(s)) // Second factor
	authGroup.POST("/otp/step-up", strict, auth, StepUpHandler(s))       // Step-up challenge
	authGroup.POST("/verify-email", strict, auth, VerifyEmailHandler(s)) // Email ownership challenge
	authGroup.GET("/sso/:provider", SSOStartHandler(s))                  // Provider redirect
	authGroup.GET("/sso/:provider/callback", SSOCallbackHandler(s))      // Provider callback
	authGroup.POST("/logout", auth, LogoutHandler(s))                    // End this session
	authGroup.POST("/logout-all", auth, LogoutAllHandler(s))             // End every session
	authGroup.GET("/me", auth, MeHandler(s))                             // Current user
	authGroup.GET("/sessions", auth, SessionsHandler(s))                 // Live sessions
	authGroup.PUT("/password", strict, auth, ChangePasswordHandler(s))   // Change password
	authGroup.POST("/otp/method", auth, OTPMethodHandler(s))             // Choose second factor
	authGroup.POST("/totp/enroll", auth, TOTPEnrollHandler(s))           // Authenticator enrollment
	authGroup.POST("/totp/confirm", strict, auth, TOTPConfirmHandler(s)) // Activate authenticator
	authGroup.POST("/totp/disable", strict, auth, TOTPDisableHandler(s)) // Deactivate authenticator

	// Public content
	apiGroup.GET("/posts", ListPostsHandler(s))                                  // Published posts
	apiGroup.GET("/posts/:slug", GetPostHandler(s))                              // One post
	apiGroup.GET("/posts/:slug/comments", ListCommentsHandler(s))                // Comment thread
	apiGroup.POST("/posts/:slug/comments", forms, auth, CreateCommentHandler(s)) // New comment
	apiGroup.DELETE("/comments/:id", auth, DeleteCommentHandler(s))              // Author or admin
	apiGroup.GET("/categories", ListCategoriesHandler(s))                        // Categories
	apiGroup.GET("/projects", ListProjectsHandler(s))                            // Portfolio
	apiGroup.GET("/projects/:slug", GetProjectHandler(s))                        // One project
	apiGroup.GET("/testimonials", ListTestimonialsHandler(s))                    // Approved testimonials
	apiGroup.POST("/testimonials", forms, SubmitTestimonialHandler(s))           // Submit testimonial
	apiGroup.POST("/contact", forms, SubmitContactHandler(s))                    // Contact form
	apiGroup.POST("/newsletter/subscribe", forms, SubscribeHandler(s))           // Double opt-in
	apiGroup.GET("/newsletter/confirm/:token", ConfirmSubscriptionHandler(s))    // Mailed confirm link
	apiGroup.GET("/newsletter/unsubscribe/:token", UnsubscribeHandler(s))        // Mailed unsubscribe link
	apiGroup.POST("/analytics/view", RecordViewHandler(s))                       // Page view beacon

	// Account routes
	userGroup := apiGroup.Group("/users")
	userGroup.Use(auth)
	userGroup.PUT("/me", UpdateProfileHandler(s))           // Edit profile
	userGroup.GET("/me/push", PushKeyHandler(s))            // VAPID public key
	userGroup.POST("/me/push", PushSubscribeHandler(s))     // Register browser
	userGroup.DELETE("/me/push", PushUnsubscribeHandler(s)) // Forget browser

	// Admin routes (protected, admin only)
	admin := apiGroup.Group("/admin")
	admin.Use(auth, middleware.AdminOnly())

	admin.GET("/posts", AdminListPostsHandler(s))                         // Posts in any status
	admin.GET("/posts/stats", PostStatsHandler(s))                        // Counts per status
	admin.GET("/posts/:id", AdminGetPostHandler(s))                       // One post
	admin.POST("/posts", CreatePostHandler(s))                            // New post
	admin.PUT("/posts/:id", UpdatePostHandler(s))                         // Edit post
	admin.DELETE("/posts/:id", DeletePostHandler(s))                      // Remove post
	admin.POST("/categories", CreateCategoryHandler(s))                   // New category
	admin.PUT("/categories/:id", UpdateCategoryHandler(s))                // Edit category
	admin.DELETE("/categories/:id", DeleteCategoryHandler(s))             // Remove category
	admin.GET("/comments", AdminListCommentsHandler(s))                   // Moderation queue
	admin.PUT("/comments/:id/status", ModerateCommentHandler(s))          // Moderate
	admin.POST("/projects", CreateProjectHandler(s))                      // New project
	admin.PUT("/projects/:id", UpdateProjectHandler(s))                   // Edit project
	admin.DELETE("/projects/:id", DeleteProjectHandler(s))                // Remove project
	admin.GET("/testimonials", AdminListTestimonialsHandler(s))           // All testimonials
	admin.PUT("/testimonials/:id/approval", ApproveTestimonialHandler(s)) // Publish or hide
	admin.DELETE("/testimonials/:id", DeleteTestimonialHandler(s))        // Remove testimonial
	admin.GET("/contacts", AdminListContactsHandler(s))                   // Contact inbox
	admin.PUT("/contacts/:id/status", MarkContactHandler(s))              // Read or archived
	admin.DELETE("/contacts/:id", DeleteContactHandler(s))                // Remove message
	admin.GET("/subscriptions", AdminListSubscriptionsHandler(s))         // Newsletter subscribers
	admin.GET("/campaigns", ListCampaignsHandler(s))                      // Campaigns
	admin.GET("/campaigns/:id", GetCampaignHandler(s))                    // One campaign
	admin.POST("/campaigns", CreateCampaignHandler(s))                    // Draft campaign
	admin.PUT("/campaigns/:id", UpdateCampaignHandler(s))                 // Edit draft
	admin.POST("/campaigns/:id/schedule", ScheduleCampaignHandler(s))     // Queue for cron
	admin.POST("/campaigns/:id/send", SendCampaignHandler(s))             // Send now
	admin.DELETE("/campaigns/:id", DeleteCampaignHandler(s))              // Remove campaign
	admin.POST("/media", UploadMediaHandler(s))                           // Upload
	admin.GET("/media", ListMediaHandler(s))                              // Library
	admin.DELETE("/media/:id", DeleteMediaHandler(s))                     // Remove upload
	admin.GET("/users", ListUsersHandler(s))                              // List users endpoint
	admin.PUT("/users/:id/role", stepUp, SetUserRoleHandler(s))           // Promote or demote
	admin.DELETE("/users/:id", stepUp, DeleteUserHandler(s))              // Remove account
	admin.GET("/analytics/summary", AnalyticsSummaryHandler(s))           // Traffic totals
	admin.GET("/analytics/heatmap", HeatmapHandler(s))                    // Visitor heatmap
}
