package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"fruver-market/config"
	"fruver-market/internal/api"
	"fruver-market/internal/cache"
	"fruver-market/internal/logger"
	"fruver-market/internal/marketdata"
	"fruver-market/internal/metrics"
	"fruver-market/internal/notification"
	"fruver-market/internal/refresh"
	redisstore "fruver-market/internal/store/redis"
	sqlitestore "fruver-market/internal/store/sqlite"
)

// memoryOnlyStorage backs the cache when Redis is unavailable: every
// read misses and writes vanish, so the cache runs purely in memory.
type memoryOnlyStorage struct{}

func (memoryOnlyStorage) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (memoryOnlyStorage) Set(context.Context, string, string) error         { return nil }
func (memoryOnlyStorage) Remove(context.Context, string) error              { return nil }

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[fruverd] starting...")

	cfg := config.Load()
	lg := logger.Init("fruverd", logger.LevelFromEnv(os.Getenv("LOG_LEVEL")))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	go metrics.Serve(cfg.MetricsAddr, health)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite price source ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	reader, err := sqlitestore.NewReader(cfg.SQLitePath, prom)
	if err != nil {
		log.Fatalf("[fruverd] sqlite init failed: %v", err)
	}
	defer reader.Close()
	health.SetSQLiteOK(true)
	log.Println("[fruverd] price source ready")

	// ---- Redis snapshot storage ----
	var storage cache.Storage = memoryOnlyStorage{}
	snap, err := redisstore.NewStore(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, prom)
	if err != nil {
		log.Printf("[fruverd] WARNING: redis init failed: %v (cache runs memory-only)", err)
		health.SetRedisConnected(false)
		health.StartLivenessChecker(ctx, nil, reader.DB(), 10*time.Second)
	} else {
		defer snap.Close()
		storage = snap
		health.SetRedisConnected(true)
		health.StartLivenessChecker(ctx, snap.Client(), reader.DB(), 10*time.Second)
		log.Println("[fruverd] snapshot storage ready")
	}

	// ---- Cache + facade ----
	store := cache.New(storage, lg, cache.WithMetrics(prom))
	data := marketdata.NewService(reader, store, lg)
	basket := cfg.ParseBasket()

	// ---- Weekly rewarm + alerts ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	}
	rewarmer := refresh.NewRewarmer(data, store, basket, notifier, lg)

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCronSpec, func() {
		if err := rewarmer.Run(ctx); err != nil {
			lg.Error("rewarm failed", "err", err)
		}
	}); err != nil {
		log.Fatalf("[fruverd] bad REFRESH_CRON %q: %v", cfg.RefreshCronSpec, err)
	}
	sched.Start()
	defer sched.Stop()
	log.Printf("[fruverd] rewarm scheduled: %s", cfg.RefreshCronSpec)

	// ---- HTTP API ----
	server := api.NewServer(data, basket, cfg.ReferenceCity, lg)
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.NewRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Printf("[fruverd] API listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[fruverd] http server: %v", err)
		}
	}()

	<-sigCh
	log.Println("[fruverd] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[fruverd] http shutdown: %v", err)
	}
	log.Println("[fruverd] stopped")
}
