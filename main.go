package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zenithAPI/handlers"
	"zenithAPI/internal/config"
	"zenithAPI/internal/lease"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/workers"
	"zenithAPI/middleware"
	"zenithAPI/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "zenith",
		Short:         "Zenith habit-challenge API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			cfg.ConfigureLogging()
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and background sweeps",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cfg)
			},
		},
		newMigrateCmd(func() *config.Config { return cfg }),
		&cobra.Command{
			Use:       "sweep <streak|moderation|payout_reconcile>",
			Short:     "Run one sweep now and exit",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"streak", "moderation", "payout_reconcile"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd.Context(), cfg, args[0])
			},
		},
	)
	return root
}

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(*cobra.Command, []string) error {
				if cfg().DatabaseURL == "" {
					return errors.New("DATABASE_URL environment variable is not set")
				}
				return ledger.Migrate(cfg().DatabaseURL)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(*cobra.Command, []string) error {
				if cfg().DatabaseURL == "" {
					return errors.New("DATABASE_URL environment variable is not set")
				}
				return ledger.Rollback(cfg().DatabaseURL)
			},
		},
	)
	return cmd
}

func runSweep(ctx context.Context, cfg *config.Config, name string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sweep, ok := a.sweeps[name]
	if !ok {
		names := make([]string, 0, len(a.sweeps))
		for n := range a.sweeps {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown or disabled sweep %q (available: %s)", name, strings.Join(names, ", "))
	}
	if err := workers.RunOnce(ctx, a.locker, sweep, time.Hour); err != nil && !errors.Is(err, lease.ErrHeld) {
		return err
	}
	return nil
}

func serve(cfg *config.Config) error {
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	log.Info("Clerk initialized successfully")

	if err := ledger.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	middleware.InitPrometheus()
	services.RegisterMetrics()

	scheduler, err := newScheduler(a)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(5, 30)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go limiter.CleanupVisitors(cleanupCtx)

	var chatHandler *handlers.ChatHandler
	if a.chat != nil {
		chatHandler = handlers.NewChatHandler(a.chat, a.users)
	}

	router := &handlers.Router{
		Health:      handlers.NewHealthHandler(a.store),
		Users:       handlers.NewUserHandler(a.users),
		Categories:  handlers.NewCategoryHandler(a.categorySv),
		Challenges:  handlers.NewChallengeHandler(a.challengeSv),
		Submissions: handlers.NewSubmissionHandler(a.submissions, a.users, a.media, cfg.IsAdmin),
		Rewards:     handlers.NewRewardHandler(a.rewards, a.users),
		Webhooks:    handlers.NewWebhookHandler(a.users, a.rewards, cfg.ClerkWebhookSecret, cfg.RazorpayWebhookSecret),
		Chat:        chatHandler,
		Auth:        middleware.ClerkAuthMiddleware,
		IsAdmin:     cfg.IsAdmin,
		RateLimit:   limiter.Middleware,
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
		PprofSecret: cfg.PprofSecret,
	}

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(router.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Got signal: %s", sig)
	case err := <-serverErr:
		log.WithError(err).Error("Error starting server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}
	if err := scheduler.Shutdown(); err != nil {
		log.WithError(err).Error("Scheduler shutdown error")
	}

	log.Info("Server shutdown complete")
	return nil
}

func newScheduler(a *app) (*workers.Scheduler, error) {
	scheduler, err := workers.NewScheduler(a.locker, a.cfg.Location)
	if err != nil {
		return nil, err
	}

	hour, minute, err := a.cfg.StreakSweepClock()
	if err != nil {
		return nil, err
	}
	if err := scheduler.Daily(a.sweeps["streak"], hour, minute); err != nil {
		return nil, err
	}
	if err := scheduler.Every(a.sweeps["payout_reconcile"], a.cfg.PayoutReconcileInterval); err != nil {
		return nil, err
	}
	if sweep, ok := a.sweeps["moderation"]; ok {
		if err := scheduler.Every(sweep, a.cfg.ModerationInterval); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}
