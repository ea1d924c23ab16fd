package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/auth"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/core"
	apihttp "finledger/internal/http"
	"finledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finledger")
	logger.Info("Starting finledger API")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	key, err := cfg.SigningKey()
	if err != nil {
		logger.Error("Failed to decode signing key", "error", err)
		os.Exit(1)
	}
	codec := auth.NewTokenCodec(key, cfg.TokenTTL)
	authenticator := auth.NewAuthenticator(codec, repo)

	// Events are best-effort: the API runs without a broker, the worker
	// catches up through its reconcile pass.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client, transaction events disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	reportCache := cache.NewLRUCache[*core.FinancialReport](256, 5*time.Minute)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	reports := services.NewReportService(repo, repo, reportCache)
	srv := apihttp.NewServer(":"+cfg.Port, apihttp.Deps{
		Users:         services.NewUserService(repo, codec),
		Categories:    services.NewCategoryService(repo, repo),
		Transactions:  services.NewTransactionService(repo, repo, publisher, reports),
		Reports:       reports,
		Authenticator: authenticator,
		Policy:        auth.DefaultPolicy(),
	})

	ctx, cancel := cli.SignalContext(logger.Logger)
	defer cancel()

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
