package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"ipvops/internal/amqp"
	"ipvops/internal/backend"
	"ipvops/internal/cli"
	"ipvops/internal/config"
	"ipvops/internal/core"
	"ipvops/internal/log"
	"ipvops/internal/sheets"
	"ipvops/internal/storage"
)

var (
	app = kingpin.New("ipvops-cli", "Fetch IPV data from Airtable and Google Sheets.")

	recordsCmd      = app.Command("records", "Print every record of the table as [{id, fields}].")
	recordsPageSize = recordsCmd.Flag("page-size", "Records per page (1-100).").Default("100").Int()
	recordsView     = recordsCmd.Flag("view", "Airtable view.").String()

	monthCmd   = app.Command("month", "Print the records of one month.")
	monthYear  = monthCmd.Arg("year", "Year, e.g. 2025.").Required().Int()
	monthMonth = monthCmd.Arg("month", "Month, 1-12.").Required().Int()
	monthView  = monthCmd.Flag("view", "Airtable view.").String()

	tablesCmd = app.Command("tables", "List the tables of the base.")

	sheetCmd      = app.Command("sheet", "Print the rows of a sheet range.")
	sheetName     = sheetCmd.Arg("name", "Sheet name.").Required().String()
	sheetStartCol = sheetCmd.Flag("start-col", "First column.").Default(sheets.DefaultStartCol).String()
	sheetEndCol   = sheetCmd.Flag("end-col", "Last column.").Default(sheets.DefaultEndCol).String()
	sheetStartRow = sheetCmd.Flag("start-row", "First row.").Default("1").Int()
	sheetEndRow   = sheetCmd.Flag("end-row", "Last row.").Default("1000").Int()
	sheetRange    = sheetCmd.Flag("range", "Raw A1 range; overrides the window flags.").String()

	auditCmd         = app.Command("audit", "Inspect the fetch audit log.")
	auditRecentCmd   = auditCmd.Command("recent", "Print the newest events from AUDIT_DB_PATH.")
	auditRecentLimit = auditRecentCmd.Flag("limit", "Number of events (1-500).").Default("50").Int()
	auditTailCmd     = auditCmd.Command("tail", "Follow events published to AMQP_URL.")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, logger := cli.LoadAndValidateConfig(os.Stderr, log.ComponentCLI)
	ctx, _ := cli.GracefulShutdown(logger, 5*time.Second, nil)

	var err error
	switch command {
	case recordsCmd.FullCommand():
		err = withSources(ctx, cfg, logger, func(src *backend.Sources) error {
			at, err := airtableOf(src)
			if err != nil {
				return err
			}
			q := core.PageQuery{PageSize: core.ClampPageSize(*recordsPageSize), View: *recordsView}
			n, err := cli.Records(ctx, at, q, os.Stdout)
			if err == nil {
				logger.Info("Fetched records", log.FieldRecords, n)
			}
			return err
		})

	case monthCmd.FullCommand():
		err = withSources(ctx, cfg, logger, func(src *backend.Sources) error {
			at, err := airtableOf(src)
			if err != nil {
				return err
			}
			n, err := cli.Month(ctx, at, *monthYear, *monthMonth, core.PageQuery{View: *monthView}, os.Stdout)
			if err == nil {
				logger.Info("Fetched records", log.FieldRecords, n, log.FieldYear, *monthYear, log.FieldMonth, *monthMonth)
			}
			return err
		})

	case tablesCmd.FullCommand():
		err = withSources(ctx, cfg, logger, func(src *backend.Sources) error {
			at, err := airtableOf(src)
			if err != nil {
				return err
			}
			return cli.Tables(ctx, at, os.Stdout)
		})

	case sheetCmd.FullCommand():
		err = withSources(ctx, cfg, logger, func(src *backend.Sources) error {
			if src.Sheets == nil {
				return src.SheetsErr
			}
			rng := *sheetRange
			if rng == "" {
				var err error
				if rng, err = sheets.A1Range(*sheetName, *sheetStartCol, *sheetEndCol, *sheetStartRow, *sheetEndRow); err != nil {
					return err
				}
			}
			n, err := cli.Sheet(ctx, src.Sheets, rng, os.Stdout)
			if err == nil {
				logger.Info("Fetched rows", log.FieldRange, rng, log.FieldRecords, n)
			}
			return err
		})

	case auditRecentCmd.FullCommand():
		err = runAuditRecent(ctx, cfg)

	case auditTailCmd.FullCommand():
		err = runAuditTail(ctx, cfg)
	}

	if err != nil {
		logger.Error("Command failed",
			"command", command,
			log.FieldError, err.Error(),
			log.FieldErrorKind, string(core.KindOf(err)))
		os.Exit(1)
	}
}

// withSources builds the upstream clients without audit sinks: CLI fetches
// are not audited.
func withSources(ctx context.Context, cfg *config.Config, logger *log.Logger, fn func(*backend.Sources) error) error {
	fetchCfg := *cfg
	fetchCfg.AuditDBPath, fetchCfg.AMQPURL = "", ""

	src, err := backend.Build(ctx, &fetchCfg, logger.Logger)
	if err != nil {
		return err
	}
	defer src.Close()
	return fn(src)
}

func airtableOf(src *backend.Sources) (backend.AirtableSource, error) {
	if src.Airtable == nil {
		return nil, src.AirtableErr
	}
	return src.Airtable, nil
}

func runAuditRecent(ctx context.Context, cfg *config.Config) error {
	if cfg.AuditDBPath == "" {
		return errors.New("audit log is disabled: set AUDIT_DB_PATH")
	}
	if *auditRecentLimit < 1 || *auditRecentLimit > storage.MaxRecentLimit {
		return core.Validationf("limit must be between 1 and %d, got %d", storage.MaxRecentLimit, *auditRecentLimit)
	}
	repo, err := storage.NewAuditRepository(cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	return cli.AuditRecent(ctx, repo, *auditRecentLimit, os.Stdout)
}

func runAuditTail(ctx context.Context, cfg *config.Config) error {
	if cfg.AMQPURL == "" {
		return errors.New("audit broker is disabled: set AMQP_URL")
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()
	return cli.AuditTail(ctx, client, os.Stdout)
}
