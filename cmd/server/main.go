package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ztgate/internal/app"
)

func main() {
	configPath := flag.String("config", envOrDefault("ZTGATE_CONFIG", "config.yaml"), "path to the gateway config file")
	flag.Parse()

	runtime, err := app.Build(app.Options{
		ConfigPath:  *configPath,
		LoadDotEnv:  true,
		WatchConfig: true,
		Environment: envOrDefault("APP_ENV", "production"),
	})
	if err != nil {
		// The logger is configured during Build; it may not exist yet.
		os.Stderr.WriteString("ztgate: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer runtime.Close()

	server := &http.Server{
		Addr:              runtime.Addr,
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		runtime.Logger.Info().Str("addr", runtime.Addr).Msg("server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runtime.Logger.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		runtime.Logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			runtime.Logger.Error().Err(err).Msg("shutdown failed")
		}
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
