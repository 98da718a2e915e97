package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/cache"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/config"
	"zenithAPI/internal/gemini"
	"zenithAPI/internal/lease"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/media"
	"zenithAPI/internal/moderation"
	"zenithAPI/internal/payout"
	"zenithAPI/services"
)

// app holds the long-lived dependencies shared by the serve and sweep
// commands.
type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	rdb        *redis.Client
	store      *ledger.PostgresStore
	challenges ledger.ChallengeStore
	categories ledger.CategoryStore
	chats      ledger.ChatStore
	locker     lease.Locker
	media      media.Store
	gemini     *genai.Client

	users       *services.UserService
	categorySv  *services.CategoryService
	challengeSv *services.ChallengeService
	chat        *services.ChatService
	submissions *services.SubmissionService
	rewards     *services.RewardService
	sweeps      map[string]services.Sweep
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, sweeps: make(map[string]services.Sweep)}
	var err error

	if a.pool, err = connectDB(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	a.store = ledger.NewPostgresStore(a.pool)
	a.challenges = a.store
	a.categories = a.store
	a.chats = a.store
	a.locker = lease.NewMemoryLocker()

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.rdb = redis.NewClient(opts)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, continuing")
		}
		a.challenges = cache.NewChallengeCache(a.store, a.rdb)
		a.categories = cache.NewCategoryCache(a.store, a.rdb)
		a.chats = cache.NewChatHistoryCache(a.store, a.rdb)
		a.locker = lease.NewRedisLocker(a.rdb)
		log.Info("Redis cache and sweep leases enabled")
	} else {
		log.Warn("REDIS_URL not set, sweep leases are process-local")
	}

	if a.media, err = newMediaStore(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}

	a.users = services.NewUserService(a.store, a.categories)
	a.categorySv = services.NewCategoryService(a.categories)
	a.challengeSv = services.NewChallengeService(a.challenges, a.categories)
	a.submissions = services.NewSubmissionService(a.store, a.challenges, cfg.CustomSubmissionPoints)

	processor := payout.NewRazorpayClient(payout.RazorpayConfig{
		BaseURL:       cfg.RazorpayAPIURL,
		KeyID:         cfg.RazorpayAPIKey,
		KeySecret:     cfg.RazorpayAPISecret,
		AccountNumber: cfg.RazorpayAccountNumber,
	})
	if err := processor.Validate(); err != nil {
		log.WithError(err).Warn("Payout processor is not fully configured; redemptions will fail")
	}
	a.rewards = services.NewRewardService(a.store, processor, services.RewardConfig{
		UnitPoints: cfg.RedemptionPoints,
		UnitAmount: cfg.RedemptionAmount,
		ContactID:  cfg.RazorpayContactID,
	})

	a.addSweep(services.NewStreakSweep(a.store, cfg.Location))
	a.addSweep(services.NewPayoutReconcileSweep(a.store, a.rewards, cfg.PayoutReconcileInterval))

	if cfg.GeminiAPIKey != "" {
		if a.gemini, err = gemini.NewClient(ctx, cfg.GeminiAPIKey); err != nil {
			a.close()
			return nil, err
		}
		validator := moderation.NewGeminiValidator(a.gemini, cfg.GeminiModel)
		a.addSweep(services.NewModerationSweep(a.store, a.challenges, a.media, validator, a.submissions,
			services.ModerationSweepConfig{RetryAfter: cfg.ModerationRetryAfter, Batch: cfg.ModerationBatch}))
		a.chat = services.NewChatService(a.chats, a.store, a.challenges, a.categories,
			chat.NewGeminiGenerator(a.gemini, cfg.GeminiChatModel))
	} else {
		log.Warn("GEMINI_API_KEY not set, auto-moderation and chat disabled")
	}

	return a, nil
}

func (a *app) addSweep(s services.Sweep) { a.sweeps[s.Name()] = s }

func (a *app) close() {
	if a.gemini != nil {
		a.gemini.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.pool != nil {
		log.Info("Closing database connection pool...")
		a.pool.Close()
	}
}

func connectDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to database")
	return pool, nil
}

func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "s3":
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "local", "":
		log.WithField("dir", cfg.UploadDir).Info("Storing proof media on local disk")
		return media.NewLocalStore(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
}
