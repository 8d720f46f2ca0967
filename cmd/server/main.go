package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	bootLogger := logging.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting roomchat server...", slog.String("addr", cfg.Addr()), slog.String("publicDir", cfg.PublicDir))

	srv := server.New(cfg, logger)
	srv.Start()

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("HTTP server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated...")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}
