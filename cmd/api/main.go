package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolhub/internal/archive"
	"schoolhub/internal/attendance"
	"schoolhub/internal/backend"
	"schoolhub/internal/bulk"
	"schoolhub/internal/config"
	"schoolhub/internal/exports"
	"schoolhub/internal/handler"
	"schoolhub/internal/httpmiddleware"
	"schoolhub/internal/logging"
	"schoolhub/internal/query"
	"schoolhub/internal/queue"
	"schoolhub/internal/report"
	"schoolhub/internal/store"
)

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
	zap.ReplaceGlobals(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	health := map[string]handler.HealthCheck{}

	var cache query.Cache
	if cfg.CacheBackend == "memory" {
		cache = query.NewMemoryCache()
	} else {
		cache = query.NewRedisCache(redisClient.Client)
		health["redis"] = redisClient.Healthy
	}

	api := backend.New(cfg.BackendURL(), cfg.BackendTimeout, log.Named("backend"))
	qc := query.NewClient(cache, cfg.StaleTime, log.Named("query"))
	att := attendance.NewService(api, qc, cfg.Location(), log.Named("attendance"))
	renderer := report.NewRenderer(report.Options{
		FontPath:     cfg.PDFFontPath,
		BoldFontPath: cfg.PDFFontBoldPath,
		Log:          log.Named("report"),
	})

	// Exports need Postgres; the rest of the console works without it.
	var exportSvc *exports.Service
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := store.NewDB(dbCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Warn("database not reachable, exports disabled", zap.Error(err))
	} else {
		defer db.Close()
		health["db"] = db.Healthy
		repo := exports.NewRepository(db.Client)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}

		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			mem := queue.NewInMemory(64)
			q = mem
			// Nothing outside this process can read an in-memory queue.
			var arch exports.Archiver
			if cfg.Cloudinary.Enabled() {
				arch = archive.New(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
			}
			proc := exports.NewProcessor(repo, att, renderer, arch, log.Named("exports"))
			go consume(ctx, mem, proc, log)
		} else {
			q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log.Named("queue"))
		}
		exportSvc = exports.NewService(repo, q, log.Named("exports"))
	}

	h := handler.New(handler.Deps{
		API:           api,
		Query:         qc,
		Attendance:    att,
		Renderer:      renderer,
		Uploader:      bulk.NewUploader(api, log.Named("bulk")),
		Exports:       exportSvc,
		Search:        query.NewRegistry(cfg.SearchDebounce, log.Named("search")),
		Limiter:       httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		Health:        health,
		Log:           log,
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.IsProduction(),
	})

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	h.Register(r)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// PDF exports of large listings take a while to render.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("backend", cfg.BackendURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// consume runs export jobs in-process for the memory queue.
func consume(ctx context.Context, q queue.Queue, proc *exports.Processor, log *zap.Logger) {
	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Error("queue consume init failed", zap.Error(err))
		return
	}
	for msg := range msgs {
		if err := proc.Handle(ctx, msg); err != nil {
			log.Error("export job failed", zap.Error(err))
		}
	}
}
