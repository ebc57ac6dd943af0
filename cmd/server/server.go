package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"valkyrie/internal/config"
	"valkyrie/internal/engine"
	"valkyrie/internal/net"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional, defaults are used otherwise)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.New(cfg.Engine.CommandBuffer, cfg.Engine.EventBuffer)
	srv := net.New(cfg.Listen.Address, cfg.Listen.Port, eng, cfg.Engine.ReportQueueDepth)

	go eng.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("session transport exited")
			stop()
			os.Exit(1)
		}
	}
}
