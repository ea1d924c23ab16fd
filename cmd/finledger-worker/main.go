package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	"finledger/internal/export"
	gsheet "finledger/internal/export/google"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finledger-worker")
	logger.Info("Starting finledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger.Logger)
	defer cancel()

	var ledger export.LedgerWriter
	if cfg.SheetsSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to initialize sheets ledger writer", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Sheets ledger export enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	} else {
		logger.Info("Sheets ledger export disabled - no SHEETS_SPREADSHEET_ID provided")
	}

	summaryWorker := worker.NewSummaryWorker(repo, ledger, cfg.ReconcileBatchSize)

	// Catch up on anything that changed while the worker was down.
	if err := summaryWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeTransactionEvents(gctx, func(msg *amqp.TransactionEventMessage) error {
				return summaryWorker.HandleTransactionEvent(gctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic reconcile only")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := summaryWorker.Reconcile(gctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Periodic reconcile failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
