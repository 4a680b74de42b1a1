package config

import (
	"errors"  // For validation errors
	"fmt"     // For DSN formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort        string   // Application port
	BaseURL        string   // Public base URL used in emails and redirects
	AllowedOrigins []string // CORS origins
	IsProd         bool     // Is production environment

	DBDriver   string // mysql or postgres
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	DBDSN      string // Full DSN override

	RedisAddr string // Redis server address
	RedisPass string // Redis password
	RedisDB   int    // Redis database number

	JWTSecret     string        // JWT secret key
	SessionTTL    time.Duration // Session lifetime (sliding)
	SessionCookie string        // Session cookie name
	SecureCookies bool          // Set the Secure flag on cookies
	CSRFSecret    string        // HMAC key for CSRF tokens

	RateLimitGlobal int // Requests per minute, global bucket
	RateLimitAuth   int // Requests per minute, auth bucket
	RateLimitForms  int // Requests per minute, public form bucket

	OTPTTL         time.Duration // Lifetime of an OTP challenge
	OTPMaxAttempts int           // Wrong codes before a challenge is burned
	StepUpWindow   time.Duration // How long an OTP step-up stays valid

	SMTPHost     string // SMTP host
	SMTPPort     int    // SMTP port
	SMTPUser     string // SMTP user
	SMTPPassword string // SMTP password
	MailFrom     string // Sender address
	AdminEmails  []string

	TwilioSID   string // Twilio account SID
	TwilioToken string // Twilio auth token
	TwilioFrom  string // Twilio sender number

	S3Bucket      string // Media bucket
	S3Region      string // Media bucket region
	S3Endpoint    string // Custom endpoint (R2, MinIO)
	S3AccessKey   string // Access key
	S3SecretKey   string // Secret key
	S3PublicURL   string // Public base URL for media
	MediaMaxBytes int64  // Upload size cap

	VAPIDPublicKey  string // Web push public key
	VAPIDPrivateKey string // Web push private key
	VAPIDSubject    string // Web push subscriber (mailto:)

	GeoIPPath     string // MaxMind GeoLite2-City database path
	IPHashSalt    string // Salt for hashing visitor IPs
	ViewRetention time.Duration

	ModerationURL       string  // Content moderation classifier endpoint
	ModerationSpam      float64 // Score at or above which a comment is spam
	ModerationReview    float64 // Score at or above which a comment waits for review
	ModerationTimeout   time.Duration
	GitHubClientID      string
	GitHubClientSecret  string
	GoogleClientID      string
	GoogleClientSecret  string
	CronSecret          string // Bearer secret for the HTTP cron trigger
	CronSchedulerEnable bool   // Run the in-process scheduler

	LogLevel      string // logrus level
	LogFile       string // Optional rotating log file
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		IsProd:         os.Getenv("IS_PROD") == "true",

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     os.Getenv("DB_PORT"),
		DBName:     os.Getenv("DB_NAME"),
		DBDSN:      os.Getenv("DB_DSN"),

		RedisAddr: getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getInt("REDIS_DB", 0),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", 7*24*time.Hour),
		SessionCookie: getEnv("SESSION_COOKIE", "session"),
		SecureCookies: getEnv("SECURE_COOKIES", "true") == "true",
		CSRFSecret:    getEnv("CSRF_SECRET", os.Getenv("JWT_SECRET")),

		RateLimitGlobal: getInt("RATE_LIMIT_GLOBAL", 300),
		RateLimitAuth:   getInt("RATE_LIMIT_AUTH", 10),
		RateLimitForms:  getInt("RATE_LIMIT_FORMS", 5),

		OTPTTL:         getDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts: getInt("OTP_MAX_ATTEMPTS", 5),
		StepUpWindow:   getDuration("STEP_UP_WINDOW", 15*time.Minute),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),
		AdminEmails:  getList("ADMIN_EMAILS", nil),

		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM"),

		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3PublicURL:   os.Getenv("S3_PUBLIC_URL"),
		MediaMaxBytes: int64(getInt("MEDIA_MAX_BYTES", 10<<20)),

		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@localhost"),

		GeoIPPath:     os.Getenv("GEOIP_DB_PATH"),
		IPHashSalt:    getEnv("IP_HASH_SALT", os.Getenv("JWT_SECRET")),
		ViewRetention: getDuration("VIEW_RETENTION", 365*24*time.Hour),

		ModerationURL:       os.Getenv("MODERATION_URL"),
		ModerationSpam:      getFloat("MODERATION_SPAM_THRESHOLD", 0.9),
		ModerationReview:    getFloat("MODERATION_REVIEW_THRESHOLD", 0.5),
		ModerationTimeout:   getDuration("MODERATION_TIMEOUT", 3*time.Second),
		GitHubClientID:      os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:  os.Getenv("GITHUB_CLIENT_SECRET"),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
		CronSecret:          os.Getenv("CRON_SECRET"),
		CronSchedulerEnable: getEnv("CRON_SCHEDULER", "true") == "true",

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getInt("LOG_MAX_AGE_DAYS", 30),
	}
}

// Validate reports configuration that the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBDSN == "" && c.DBName == "" {
		errs = append(errs, errors.New("DB_NAME or DB_DSN is required"))
	}
	if c.DBDriver != "mysql" && c.DBDriver != "postgres" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.ModerationReview > c.ModerationSpam {
		errs = append(errs, errors.New("MODERATION_REVIEW_THRESHOLD must not exceed MODERATION_SPAM_THRESHOLD"))
	}
	return errors.Join(errs...)
}

// DSN builds the Data Source Name for the configured driver
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN // Explicit override wins
	}
	if c.DBDriver == "postgres" {
		port := c.DBPort
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, port)
	}
	port := c.DBPort
	if port == "" {
		port = "3306"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + port + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

// SMTPEnabled reports whether outgoing mail is configured
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }

// TwilioEnabled reports whether SMS delivery is configured
func (c *Config) TwilioEnabled() bool { return c.TwilioSID != "" && c.TwilioToken != "" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
