package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/logger"
	"github.com/stemsi/exstem-gateway/internal/mockapi"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/validator"
)

// mock-upstream serves the assessment REST API the gateway talks to, backed
// by in-memory fixtures. Tokens are signed with JWT_SECRET.
func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.MockPort, "listen port")
	fixtures := flag.String("fixtures", cfg.MockFixtures, "fixtures JSON file (built-in sample when empty)")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()
	gin.SetMode(cfg.GinMode)

	f := mockapi.SampleFixtures()
	if *fixtures != "" {
		loaded, err := mockapi.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatal().Err(err).Str("path", *fixtures).Msg("Failed to load fixtures")
		}
		f = loaded
	}
	log.Info().
		Int("exams", len(f.Exams)).
		Int("exercises", len(f.Exercises)).
		Msg("Fixtures loaded")

	store := mockapi.NewStore(f, clockwork.NewRealClock())
	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: mockapi.NewServer(store, service.NewAuthService(cfg.JWTSecret, service.WithIssuer(cfg.JWTIssuer)), log).Router(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Mock upstream listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
