package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lochiel/hacienda/internal/auth"
	authStore "github.com/lochiel/hacienda/internal/auth/store"
	"github.com/lochiel/hacienda/internal/config"
	"github.com/lochiel/hacienda/internal/database"
	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/exchange"
	"github.com/lochiel/hacienda/internal/export"
	haciendaHttp "github.com/lochiel/hacienda/internal/http"
	authHandler "github.com/lochiel/hacienda/internal/http/auth"
	documentHandler "github.com/lochiel/hacienda/internal/http/document"
	dutHandler "github.com/lochiel/hacienda/internal/http/dut"
	exchangeHandler "github.com/lochiel/hacienda/internal/http/exchange"
	exportHandler "github.com/lochiel/hacienda/internal/http/export"
	matchingHandler "github.com/lochiel/hacienda/internal/http/matching"
	saleHandler "github.com/lochiel/hacienda/internal/http/sale"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/importer/ocr"
	"github.com/lochiel/hacienda/internal/matching"
	matchingStore "github.com/lochiel/hacienda/internal/matching/store"
	"github.com/lochiel/hacienda/internal/sale"
	saleStore "github.com/lochiel/hacienda/internal/sale/store"
	"github.com/lochiel/hacienda/internal/storage/gcs"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, db *sql.DB) error {
	for name, schema := range map[string]string{
		"sales":    saleStore.Schema,
		"matching": matchingStore.Schema,
		"auth":     authStore.Schema,
	} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("applying %s schema: %w", name, err)
		}
	}

	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.ConnectionString(), cfg.DB.MaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		return err
	}

	var storage document.Storage

	if cfg.Storage.Bucket != "" {
		client, err := gcs.New(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsJSON)
		if err != nil {
			return err
		}
		defer client.Close()

		storage = client
	} else {
		slog.Warn("GCS_BUCKET not set, document uploads are disabled")
	}

	var rateCache exchange.Cache

	if cfg.Redis.URL != "" {
		rdb, err := exchange.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Warn("redis unavailable, exchange rates will not be cached", "error", err)
		} else {
			defer rdb.Close()

			rateCache = exchange.NewRedisCache(rdb)
		}
	}

	var ocrSource importer.Source

	if cfg.OCR.URL != "" {
		ocrSource = ocr.New(cfg.OCR.URL, cfg.OCR.Timeout)
	}

	var (
		saleService     = sale.NewService(saleStore.New(db), cfg.DefaultIVA())
		matchingService = matching.NewService(matchingStore.New(db))
		authService     = auth.NewService(authStore.New(db), cfg.Auth.Secret, cfg.Auth.TokenTTL)
		importService   = importer.NewService(ocrSource)
		exchangeService = exchange.NewService(
			exchange.NewClient(cfg.Exchange.BaseURL), rateCache, cfg.Exchange.House, cfg.Exchange.CacheTTL)
		documentService = document.NewService(
			storage, importService, saleService, matchingService, cfg.Storage.SignedURLTTL)
	)

	var links export.Linker
	if storage != nil {
		links = documentService
	}

	exportService := export.NewService(saleService, links)

	router := haciendaHttp.New(haciendaHttp.Handlers{
		Auth:      authHandler.NewHandler(authService),
		Sales:     saleHandler.NewHandler(saleService, exchangeService),
		Documents: documentHandler.NewHandler(documentService, saleService, cfg.Server.MaxUpload),
		DUT: dutHandler.NewHandler(
			importService, documentService, cfg.Billing.ConfidenceThreshold, cfg.Server.MaxUpload),
		Exchange: exchangeHandler.NewHandler(exchangeService),
		Matching: matchingHandler.NewHandler(matchingService),
		Export:   exportHandler.NewHandler(exportService),
	}, authService, haciendaHttp.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     cfg.Server.Metrics,
	})

	go sweepAlerts(ctx, saleService, cfg.Alerts.SweepInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      2 * cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "port", srv.Addr, "app", cfg.App.Name)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// sweepAlerts reconciles the open sales every interval until ctx ends.
func sweepAlerts(ctx context.Context, svc *sale.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ReconcileActive(ctx)
			if err != nil {
				slog.Error("alert sweep failed", "error", err)
				continue
			}

			slog.Info("alert sweep finished", "raised", n)
		}
	}
}
