package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/dealflow/internal/app"
	"github.com/MrJamesThe3rd/dealflow/internal/config"
	dealflowHttp "github.com/MrJamesThe3rd/dealflow/internal/http"
	exportHandler "github.com/MrJamesThe3rd/dealflow/internal/http/export"
	forecastHandler "github.com/MrJamesThe3rd/dealflow/internal/http/forecast"
	importHandler "github.com/MrJamesThe3rd/dealflow/internal/http/importcsv"
	"github.com/MrJamesThe3rd/dealflow/internal/http/middleware"
	oppHandler "github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := cfg.Logger(os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, log,
		opportunity.WithStageObserver(func(_ uuid.UUID, from, to opportunity.Stage) {
			middleware.RecordStageMove(string(from), string(to))
		}),
	)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	var (
		opportunityH = oppHandler.NewHandler(services.Opportunities)
		forecastH    = forecastHandler.NewHandler(services.Forecast)
		importH      = importHandler.NewHandler(services.Import, cfg.Import.MaxUploadBytes)
		exportH      = exportHandler.NewHandler(services.Export)
	)

	router := dealflowHttp.New(cfg.Server.CORSOrigins, opportunityH, forecastH, importH, exportH)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "app", cfg.App.Name, "addr", srv.Addr, "strict_transitions", cfg.Pipeline.StrictTransitions)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
