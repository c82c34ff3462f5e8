package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/powercast/powercast/pkg/chat"
	"github.com/powercast/powercast/pkg/external"
	"github.com/powercast/powercast/pkg/forecast"
	"github.com/powercast/powercast/pkg/learning"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/server"
	"github.com/powercast/powercast/pkg/storage"
)

func main() {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	// init packages
	db := storage.Configured()
	system := learning.Configured(db)
	forecasts := forecast.Configured(system.Logger)
	assistant := chat.Configured()
	ext := external.Configured()

	// init server
	srv := server.Configured(server.Deps{
		Storage:   db,
		Forecasts: forecasts,
		Learning:  system,
		Assistant: assistant,
		External:  ext,
	})

	// parse flags
	lflag.Configure()

	// lflag sets llog's level, slog needs to follow it
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := system.Sinks.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close event sinks", slog.Any("error", err))
		}
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
