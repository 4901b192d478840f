package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/cache"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/db"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/scheduler"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/server"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/mailer"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	publisher := realtime.NewPublisher(hub, rdb)
	go publisher.Relay(ctx)

	photos := media.NewPhotoStore(cfg.UploadDir, cfg.AppBaseURL)
	svc := users.NewService(gdb, newCache(cfg, rdb), photos, publisher, mailer.New(cfg.SMTP, cfg.AppBaseURL))
	svc.Gravatar = &cfg.Gravatar

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	if err := sched.AddSingletonJob(
		scheduler.PhotoSweepJobID,
		"orphaned photo sweep",
		cfg.SweepInterval,
		scheduler.PhotoSweep(photos, gdb, scheduler.DefaultPhotoSweepGrace),
	); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop() //nolint:errcheck

	app := server.New(server.Deps{
		Config: cfg,
		Users:  svc,
		Hub:    hub,
		Logger: log.Default(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.AppPort, "db", cfg.DBDriver, "cache", cfg.CacheType)
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func newCache(cfg *config.Config, rdb *redis.Client) *cache.Store {
	if cfg.CacheType == config.CacheTypeRedis {
		if rdb != nil {
			return cache.NewRedis(rdb, cfg.CacheTTL)
		}
		log.Warn("redis unavailable, using in-memory cache")
	}
	return cache.NewMemory(cfg.CacheTTL)
}
