package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/scheduled-mailer/internal/bootstrap"
	"github.com/sungwon/scheduled-mailer/internal/config"
	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/logger"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	once := flag.Bool("once", false, "perform a single dispatch run and exit")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Logging, "dispatcher")
	log.Info().Str("driver", cfg.Database.Driver).Bool("once", *once).Msg("starting dispatcher")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	dispatcher := dispatch.NewDispatcher(backend.Store, sender, cfg.Dispatch, log,
		dispatch.WithLock(bootstrap.NewRunLock(redisClient, cfg.Dispatch, log)))

	trigger, err := dispatch.NewTrigger(dispatcher, cfg.Dispatch.Schedule, cfg.Dispatch.Timezone, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid dispatch schedule")
	}

	if *once {
		summary, err := trigger.RunNow(ctx)
		if err != nil {
			log.Error().Err(err).Msg("dispatch run failed")
			os.Exit(1)
		}
		log.Info().
			Int("selected", summary.Selected).
			Int("sent", summary.Sent).
			Int("failed", summary.Failed).
			Msg("dispatch run finished")
		return
	}

	if err := trigger.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start dispatch trigger")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down dispatcher")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	trigger.Stop(shutdownCtx)

	log.Info().Msg("dispatcher stopped")
}
