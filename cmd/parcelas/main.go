package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"parcelas/internal/cache"
	"parcelas/internal/cli"
	"parcelas/internal/config"
	apphttp "parcelas/internal/http"
	"parcelas/internal/log"
	"parcelas/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	publisher := cli.InitPublisher(ctx, logger, cfg)

	summaries := services.NewSummaryService(repo, cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	expenses := services.NewExpenseService(repo, publisher, summaries)
	defer func() {
		if err := expenses.Close(); err != nil {
			logger.Error("Close failed", "error", err)
		}
	}()

	cacheManager := cache.NewManager(cfg.CacheCleanupInterval, logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(summaries.Cache())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Commands:  expenses,
		Queries:   repo,
		Summaries: summaries,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting parcelas server", "port", cfg.Port, "db", cfg.SQLiteDBPath, "amqp", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return cacheManager.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}
