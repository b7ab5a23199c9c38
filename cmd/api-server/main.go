package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/scheduled-mailer/internal/api"
	"github.com/sungwon/scheduled-mailer/internal/auth"
	"github.com/sungwon/scheduled-mailer/internal/bootstrap"
	"github.com/sungwon/scheduled-mailer/internal/config"
	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/logger"
	"github.com/sungwon/scheduled-mailer/internal/reminder"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	issueToken := flag.String("issue-token", "", "print an access token for this subject and exit")
	role := flag.String("role", auth.RoleOperator, "role for -issue-token (admin or operator)")
	newAPIKey := flag.Bool("new-api-key", false, "print a new API key and its bcrypt hash and exit")
	flag.Parse()

	if *newAPIKey {
		if err := printAPIKey(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate api key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var jwtService *auth.JWTService
	if cfg.Auth.JWT.SigningKey != "" {
		jwtService = auth.NewJWTService(cfg.Auth.JWT)
	}

	if *issueToken != "" {
		if jwtService == nil {
			fmt.Fprintln(os.Stderr, "auth.jwt.signing_key is not set")
			os.Exit(1)
		}
		token, err := jwtService.GenerateAccessToken(*issueToken, *role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Logging, "api-server")
	log.Info().Str("driver", cfg.Database.Driver).Msg("starting API server")

	ctx := context.Background()
	backend, err := bootstrap.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	redisClient, err := bootstrap.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sender, err := bootstrap.NewSender(cfg.Mailer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mail sender")
	}

	svc := scheduling.NewService(backend.Store, log)
	dispatcher := dispatch.NewDispatcher(backend.Store, sender, cfg.Dispatch, log,
		dispatch.WithLock(bootstrap.NewRunLock(redisClient, cfg.Dispatch, log)))

	planner, err := reminder.NewPlanner(svc, cfg.Reminder, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create reminder planner")
	}

	keys, err := auth.NewKeyStore(cfg.Auth.APIKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid api key configuration")
	}
	if jwtService == nil && len(cfg.Auth.APIKeys) == 0 {
		log.Warn().Msg("no JWT signing key or API keys configured; every /api/v1 request will be rejected")
	}

	router := api.NewRouter(api.Deps{
		Emails:     svc,
		Dispatcher: dispatcher,
		Reminders:  planner,
		DB:         backend,
		JWT:        jwtService,
		APIKeys:    keys,
		Limiter:    auth.NewRateLimiter(redisClient, cfg.Auth.RateLimit),
		Log:        log,
	})

	// Configure HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func printAPIKey() error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Printf("key:  %s\nhash: %s\n", key, hash)
	return nil
}
