package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ipvops/internal/airtable"
	"ipvops/internal/amqp"
	"ipvops/internal/audit"
	"ipvops/internal/config"
	"ipvops/internal/log"
	gsheet "ipvops/internal/sheets/google"
	"ipvops/internal/sheets/memory"
	"ipvops/internal/storage"
)

// Build creates the upstream clients and audit sinks described by cfg.
// Missing source credentials are kept on Sources rather than returned; only
// an unusable audit database is fatal. A broker that cannot be reached is
// logged and skipped.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sources, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(log.FieldComponent, log.ComponentBackend)
	src := &Sources{}

	at, err := airtable.New(AirtableConfig(cfg), FetchOptions(cfg)...)
	if err != nil {
		logger.Warn("Airtable disabled", "error", err)
		src.AirtableErr = err
	} else {
		src.Airtable = at
		logger.Info("Initialized Airtable client",
			"base_id", cfg.AirtableBaseID,
			"table", cfg.AirtableTableName,
			"max_attempts", cfg.FetchMaxAttempts)
	}

	if err := buildSheets(ctx, cfg, logger, src); err != nil {
		return nil, err
	}

	if err := buildAudit(ctx, cfg, logger, src); err != nil {
		src.Close()
		return nil, err
	}
	return src, nil
}

func buildSheets(ctx context.Context, cfg *config.Config, logger *slog.Logger, src *Sources) error {
	switch cfg.SheetsBackend {
	case SheetsMemory:
		store, err := memory.NewFromDir(cfg.SheetsDataDir)
		if err != nil {
			return fmt.Errorf("failed to initialize memory sheets backend: %w", err)
		}
		src.Sheets = store
		logger.Info("Initialized memory sheets backend", "data_directory", cfg.SheetsDataDir)
	case SheetsGoogle, "":
		cli, err := gsheet.New(ctx, GoogleConfig(cfg))
		if err != nil {
			logger.Warn("Google Sheets disabled", "error", err)
			src.SheetsErr = err
			return nil
		}
		src.Sheets = cli
		logger.Info("Initialized Google Sheets client", "spreadsheet_id", cfg.GoogleSheetID)
	default:
		return fmt.Errorf("unsupported sheets backend: %s", cfg.SheetsBackend)
	}
	return nil
}

func buildAudit(ctx context.Context, cfg *config.Config, logger *slog.Logger, src *Sources) error {
	var (
		sinks       audit.Multi
		amqpEnabled bool
	)

	if cfg.AuditDBPath != "" {
		repo, err := storage.NewAuditRepository(cfg.AuditDBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize audit store: %w", err)
		}
		src.AddCleanup(repo.Close)
		src.AuditLog = repo
		sinks = append(sinks, repo)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			src.AddCleanup(client.Close)
			sinks = append(sinks, client)
			amqpEnabled = true
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	switch len(sinks) {
	case 0:
		src.Audit = audit.Nop{}
	case 1:
		src.Audit = sinks[0]
	default:
		src.Audit = sinks
	}
	logger.Info("Audit sinks configured",
		"sqlite", cfg.AuditDBPath != "",
		"amqp", amqpEnabled)
	return nil
}
