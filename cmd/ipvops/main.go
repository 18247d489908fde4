package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ipvops/internal/backend"
	"ipvops/internal/cli"
	apphttp "ipvops/internal/http"
	"ipvops/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout, log.ComponentApp)

	src, err := backend.Build(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize backends", log.FieldError, err.Error())
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPM:       cfg.RateLimitRPM,
	}, src, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), src.Close())
	})

	logger.Info("Starting ipvops server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"sheets_backend", cfg.SheetsBackend,
		"airtable_configured", src.Airtable != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		_ = src.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
