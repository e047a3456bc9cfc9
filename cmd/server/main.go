package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/database"
	"github.com/stemsi/exstem-gateway/internal/handler"
	"github.com/stemsi/exstem-gateway/internal/logger"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/mockapi"
	"github.com/stemsi/exstem-gateway/internal/progress"
	"github.com/stemsi/exstem-gateway/internal/repository"
	"github.com/stemsi/exstem-gateway/internal/router"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/upstream"
	"github.com/stemsi/exstem-gateway/internal/validator"
	"github.com/stemsi/exstem-gateway/internal/worker"
)

// upstreamLocal serves the assessment API from in-process sample fixtures.
const upstreamLocal = "local"

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("upstream", cfg.UpstreamBaseURL).
		Str("drafts", cfg.DraftBackend).
		Msg("Starting ExStem Gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL (optional) ──────────────────────────────
	var pool *pgxpool.Pool
	if cfg.HasPostgres() {
		var err error
		pool, err = database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
	}

	// ─── Connect to Redis (optional) ───────────────────────────────────
	var rdb *redis.Client
	if cfg.HasRedis() {
		var err error
		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	// ─── Draft Storage ─────────────────────────────────────────────────
	var draftRepo *repository.DraftRepository
	if pool != nil {
		draftRepo = repository.NewDraftRepository(pool)
	}
	kv, sqliteDB := buildDraftKV(ctx, cfg, rdb, draftRepo, log)
	if sqliteDB != nil {
		defer sqliteDB.Close()
	}
	clock := clockwork.NewRealClock()
	drafts := progress.NewStore(kv, clock, log)

	// ─── Upstream ──────────────────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, service.WithIssuer(cfg.JWTIssuer))
	newCaller := buildCallerFactory(cfg, authService, clock, log)

	// ─── Result History ────────────────────────────────────────────────
	managerCfg := service.SessionManagerConfig{
		NewCaller:     newCaller,
		Drafts:        drafts,
		Clock:         clock,
		Log:           log,
		SubmitTimeout: cfg.SubmitTimeout,
		IdleTimeout:   cfg.SessionIdle,
	}
	var resultRepo *repository.ResultRepository
	if pool != nil {
		resultRepo = repository.NewResultRepository(pool)
		managerCfg.History = resultRepo
		if rdb != nil {
			managerCfg.Results = service.NewResultQueue(rdb)
		} else {
			managerCfg.Results = resultRepo
		}
	}
	sessions := service.NewSessionManager(managerCfg)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:     handler.NewExamHandler(sessions, log),
		Practice: handler.NewPracticeHandler(sessions, log),
		Retry:    handler.NewRetryHandler(sessions, log),
		History:  handler.NewHistoryHandler(sessions, log),
		WS:       handler.NewWSHandler(sessions, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workersDone []chan struct{}
	startWorker := func(run func(context.Context)) {
		done := make(chan struct{})
		workersDone = append(workersDone, done)
		go func() {
			defer close(done)
			run(workerCtx)
		}()
	}

	if rdb != nil && resultRepo != nil {
		startWorker(worker.NewResultWorker(resultRepo, rdb, log).Start)
	}
	if rdb != nil && draftRepo != nil && cfg.DraftBackend == config.DraftBackendRedis && cfg.DraftMirror {
		startWorker(worker.NewDraftWorker(draftRepo, rdb, log).Start)
	}

	limiterOpts := []middleware.RateLimiterOption{middleware.WithClock(clock)}
	if rdb != nil {
		limiterOpts = append(limiterOpts, middleware.WithRedis(rdb))
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute, log, limiterOpts...)
	go limiter.RunCleanup(workerCtx)

	if err := sessions.StartSweeper(cfg.SweepSchedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Invalid sweep schedule")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Pause running exams so no student loses time while we are down.
	suspendCtx, suspendCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer suspendCancel()
	if err := sessions.SuspendAll(suspendCtx); err != nil {
		log.Error().Err(err).Msg("Suspending sessions failed")
	}

	// 3. Stop background workers and wait for queues to flush.
	workerCancel()
	for _, done := range workersDone {
		<-done
	}

	log.Info().Msg("Shutdown complete")
}

// buildDraftKV selects the draft backend. The SQLite handle is returned so
// the caller can close it.
func buildDraftKV(
	ctx context.Context,
	cfg *config.Config,
	rdb *redis.Client,
	draftRepo *repository.DraftRepository,
	log zerolog.Logger,
) (progress.KV, *sql.DB) {
	switch cfg.DraftBackend {
	case config.DraftBackendRedis:
		if rdb == nil {
			log.Fatal().Msg("DRAFT_BACKEND=redis requires REDIS_URL")
		}
		var opts []progress.RedisOption
		if draftRepo != nil && cfg.DraftMirror {
			opts = append(opts,
				progress.WithMirror(),
				progress.WithFallback(progress.NewPostgresKV(draftRepo, cfg.DraftTTL)),
			)
		}
		return progress.NewRedisKV(rdb, cfg.DraftTTL, log, opts...), nil

	case config.DraftBackendPostgres:
		if draftRepo == nil {
			log.Fatal().Msg("DRAFT_BACKEND=postgres requires DATABASE_URL")
		}
		return progress.NewPostgresKV(draftRepo, cfg.DraftTTL), nil

	case config.DraftBackendSQLite:
		db, err := database.NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite")
		}
		kv, err := progress.NewSQLiteKV(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite drafts")
		}
		return kv, db

	case config.DraftBackendMemory:
		log.Warn().Msg("Drafts are kept in memory and lost on restart")
		return progress.NewMemoryKV(), nil

	default:
		log.Fatal().Str("backend", cfg.DraftBackend).Msg("Unknown draft backend")
		return nil, nil
	}
}

// buildCallerFactory returns the per-student upstream caller constructor.
func buildCallerFactory(
	cfg *config.Config,
	auth *service.AuthService,
	clock clockwork.Clock,
	log zerolog.Logger,
) service.CallerFactory {
	if cfg.UpstreamBaseURL == upstreamLocal {
		log.Warn().Msg("Serving assessments from built-in sample fixtures")
		store := mockapi.NewStore(mockapi.SampleFixtures(), clock)
		return func(token string) service.UpstreamCaller {
			// Tokens reaching the manager were validated by the JWT middleware.
			claims, err := auth.ValidateToken(token)
			if err != nil {
				log.Error().Err(err).Msg("Local upstream received an invalid token")
				return store.For(0)
			}
			return store.For(claims.UserID)
		}
	}

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, log)
	return func(token string) service.UpstreamCaller {
		return client.For(token)
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
