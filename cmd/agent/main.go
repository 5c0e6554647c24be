package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/edulane/liveclass/internal/adapters/http"
	"github.com/edulane/liveclass/internal/app"
	"github.com/edulane/liveclass/internal/config"
	"github.com/edulane/liveclass/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fs := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	fs.String("ws_base", "", "websocket origin, e.g. wss://app.example.com")
	fs.String("token", "", "access token")
	fs.String("user_id", "", "user id")
	fs.StringSlice("courses", nil, "course ids to watch")
	fs.Int("status_port", 0, "local status API port")
	fs.String("log_level", "", "log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, lerr := zerolog.ParseLevel(cfg.LogLevel); lerr == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	client := app.NewClient(cfg, media.NewSampleProvider())
	if err := client.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start realtime client")
	}

	r := router.SetupRouter(cfg.Mode, client)
	addr := fmt.Sprintf(":%d", cfg.StatusPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("liveclass agent started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	client.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Agent exited gracefully")
}
