package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"schoolhub/internal/archive"
	"schoolhub/internal/attendance"
	"schoolhub/internal/backend"
	"schoolhub/internal/config"
	"schoolhub/internal/exports"
	"schoolhub/internal/logging"
	"schoolhub/internal/query"
	"schoolhub/internal/queue"
	"schoolhub/internal/report"
	"schoolhub/internal/store"
)

// Worker consumes export jobs, renders the PDFs and stores them.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(logging.Options{Production: cfg.IsProduction(), Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory runs exports inside the api process; the worker needs redis")
	}

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := store.NewDB(dbCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	repo := exports.NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema failed", zap.Error(err))
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log.Named("queue"))

	var cache query.Cache = query.NewMemoryCache()
	if cfg.CacheBackend == "redis" {
		cache = query.NewRedisCache(redisClient.Client)
	}
	api := backend.New(cfg.BackendURL(), cfg.BackendTimeout, log.Named("backend"))
	att := attendance.NewService(api, query.NewClient(cache, cfg.StaleTime, log.Named("query")), cfg.Location(), log.Named("attendance"))
	renderer := report.NewRenderer(report.Options{
		FontPath:     cfg.PDFFontPath,
		BoldFontPath: cfg.PDFFontBoldPath,
		Log:          log.Named("report"),
	})

	var arch exports.Archiver
	if cfg.Cloudinary.Enabled() {
		arch = archive.New(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		log.Info("archive configured", zap.String("cloud", cfg.Cloudinary.CloudName))
	} else {
		log.Info("archive not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}
	proc := exports.NewProcessor(repo, att, renderer, arch, log.Named("exports"))

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started, waiting for export jobs")
	for msg := range messages {
		if err := proc.Handle(ctx, msg); err != nil {
			log.Error("export job failed", zap.Error(err))
		}
	}
	log.Info("worker stopped")
}
