package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string
	Port        string

	ClerkSecretKey     string
	ClerkWebhookSecret string
	AdminClerkIDs      []string

	RedisURL string

	MediaBackend string
	UploadDir    string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiChatModel string

	RazorpayAPIURL        string
	RazorpayAPIKey        string
	RazorpayAPISecret     string
	RazorpayAccountNumber string
	RazorpayContactID     string
	RazorpayWebhookSecret string

	RedemptionPoints       int64
	RedemptionAmount       int64
	CustomSubmissionPoints int64

	Location                *time.Location
	StreakSweepAt           string
	ModerationInterval      time.Duration
	ModerationRetryAfter    time.Duration
	ModerationBatch         int
	PayoutReconcileInterval time.Duration

	MetricsUser string
	MetricsPass string
	PprofSecret string

	LogLevel  string
	LogFormat string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),

		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		AdminClerkIDs:      splitList(os.Getenv("ADMIN_CLERK_IDS")),

		RedisURL: os.Getenv("REDIS_URL"),

		MediaBackend: getEnv("MEDIA_BACKEND", "local"),
		UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		S3Bucket:     os.Getenv("S3_BUCKET"),
		S3Region:     getEnv("S3_REGION", "auto"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		RazorpayAPIURL:        getEnv("RAZORPAY_API_URL", "https://api.razorpay.com/v1"),
		RazorpayAPIKey:        os.Getenv("RAZORPAY_API_KEY"),
		RazorpayAPISecret:     os.Getenv("RAZORPAY_API_SECRET"),
		RazorpayAccountNumber: os.Getenv("RAZORPAY_ACCOUNT_NUMBER"),
		RazorpayContactID:     os.Getenv("RAZORPAY_CONTACT_ID"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		StreakSweepAt: getEnv("STREAK_SWEEP_AT", "00:05"),

		MetricsUser: os.Getenv("METRICS_USER"),
		MetricsPass: os.Getenv("METRICS_PASS"),
		PprofSecret: os.Getenv("PPROF_SECRET"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	cfg.GeminiChatModel = getEnv("GEMINI_CHAT_MODEL", cfg.GeminiModel)

	var err error
	if cfg.RedemptionPoints, err = getInt64("REDEMPTION_POINTS", 3000); err != nil {
		return nil, err
	}
	if cfg.RedemptionAmount, err = getInt64("REDEMPTION_AMOUNT", 200); err != nil {
		return nil, err
	}
	if cfg.CustomSubmissionPoints, err = getInt64("CUSTOM_SUBMISSION_POINTS", 100); err != nil {
		return nil, err
	}
	batch, err := getInt64("MODERATION_BATCH", 1)
	if err != nil {
		return nil, err
	}
	cfg.ModerationBatch = int(batch)

	if cfg.ModerationInterval, err = getDuration("MODERATION_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ModerationRetryAfter, err = getDuration("MODERATION_RETRY_AFTER", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PayoutReconcileInterval, err = getDuration("PAYOUT_RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", "Asia/Kolkata")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	if _, _, err := cfg.StreakSweepClock(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireServe checks the settings the HTTP server cannot start without.
func (c *Config) RequireServe() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.ClerkSecretKey == "" {
		return fmt.Errorf("CLERK_SECRET_KEY environment variable is not set")
	}
	return nil
}

// StreakSweepClock parses STREAK_SWEEP_AT as HH:MM.
func (c *Config) StreakSweepClock() (hour, minute uint, err error) {
	t, err := time.Parse("15:04", c.StreakSweepAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid STREAK_SWEEP_AT %q: %w", c.StreakSweepAt, err)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}

func (c *Config) IsAdmin(clerkID string) bool {
	for _, id := range c.AdminClerkIDs {
		if id == clerkID {
			return true
		}
	}
	return false
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the global logger.
func (c *Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
