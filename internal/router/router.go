package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/handler"
	"github.com/stemsi/exstem-gateway/internal/logger"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam     *handler.ExamHandler
	Practice *handler.PracticeHandler
	Retry    *handler.RetryHandler
	History  *handler.HistoryHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware(), logger.RequestLogger(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.NoStore(),
	)

	// Mutating routes share the per-student budget.
	limited := limiter.Middleware()

	// Timed exam session.
	exam := studentAPI.Group("/exams/:exam_id/session")
	{
		exam.GET("", handlers.Exam.GetSession)
		exam.DELETE("", handlers.Exam.Teardown)
		exam.GET("/result", handlers.Exam.GetResult)
		exam.POST("/start", limited, handlers.Exam.Start)
		exam.POST("/pause", limited, handlers.Exam.Pause)
		exam.POST("/resume", limited, handlers.Exam.Resume)
		exam.POST("/sync", limited, handlers.Exam.Sync)
		exam.POST("/suspend", handlers.Exam.Suspend)
		exam.POST("/submit", limited, handlers.Exam.Submit)
		exam.PUT("/answers/:question_id", limited, handlers.Exam.SetAnswer)
		exam.POST("/answers/:question_id/toggle", limited, handlers.Exam.ToggleOption)
		exam.POST("/navigate", limited, handlers.Exam.Navigate)
	}

	// Untimed practice session.
	practice := studentAPI.Group("/exercises/:exercise_id/practice")
	{
		practice.GET("", handlers.Practice.GetSession)
		practice.DELETE("", handlers.Practice.Teardown)
		practice.PUT("/answers/:question_id", limited, handlers.Practice.SetAnswer)
		practice.POST("/answers/:question_id/toggle", limited, handlers.Practice.ToggleOption)
		practice.POST("/navigate", limited, handlers.Practice.Navigate)
		practice.POST("/submit", limited, handlers.Practice.Submit)
		practice.POST("/cancel-submit", limited, handlers.Practice.CancelSubmit)
		practice.POST("/retry", limited, handlers.Practice.Retry)
	}

	// Wrong-question retry of a graded attempt.
	retry := studentAPI.Group("/attempts/:attempt_id/retry")
	{
		retry.GET("", handlers.Retry.GetSession)
		retry.DELETE("", handlers.Retry.Teardown)
		retry.PUT("/answers/:question_id", limited, handlers.Retry.SetAnswer)
		retry.POST("/answers/:question_id/toggle", limited, handlers.Retry.ToggleOption)
		retry.POST("/submit", limited, handlers.Retry.Submit)
		retry.POST("/cancel-submit", limited, handlers.Retry.CancelSubmit)
	}

	studentAPI.GET("/history", handlers.History.List)

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	return router
}
