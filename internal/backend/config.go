package backend

import (
	"ipvops/internal/airtable"
	"ipvops/internal/config"
	"ipvops/internal/fetch"
	gsheet "ipvops/internal/sheets/google"
)

// Sheets backend names accepted in SHEETS_BACKEND.
const (
	SheetsGoogle = "google"
	SheetsMemory = "memory"
)

// AirtableConfig converts the application config to the Airtable client config.
func AirtableConfig(cfg *config.Config) airtable.Config {
	return airtable.Config{
		BaseID:         cfg.AirtableBaseID,
		TableName:      cfg.AirtableTableName,
		Token:          cfg.AirtablePAT,
		APIURL:         cfg.AirtableAPIURL,
		DateField:      cfg.AirtableDateField,
		InclusiveStart: cfg.AirtableInclusiveStart,
		MaxPages:       cfg.AirtableMaxPages,
	}
}

// FetchOptions carries the retry and timeout settings into the fetcher.
func FetchOptions(cfg *config.Config) []fetch.Option {
	return []fetch.Option{
		fetch.WithMaxAttempts(cfg.FetchMaxAttempts),
		fetch.WithBaseDelay(cfg.FetchBaseDelay),
		fetch.WithTimeout(cfg.FetchTimeout),
	}
}

// GoogleConfig converts the application config to the Sheets client config.
func GoogleConfig(cfg *config.Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:   cfg.GoogleSheetID,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	}
}
