package backend

import (
	"context"
	"errors"

	"ipvops/internal/audit"
	"ipvops/internal/core"
	"ipvops/internal/sheets"
)

// AirtableSource is the Airtable surface the API serves.
type AirtableSource interface {
	GetTableData(ctx context.Context, q core.PageQuery) (core.Page, error)
	FetchAllRecords(ctx context.Context, q core.PageQuery) ([]core.Record, error)
	GetByMonth(ctx context.Context, year, month int, q core.PageQuery) ([]core.Record, error)
	ListTables(ctx context.Context) ([]core.Table, error)
	sheets.Pinger
}

// SheetsSource reads ranges from one spreadsheet.
type SheetsSource interface {
	sheets.RangeReader
	sheets.Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Sources holds everything the server reads from or writes to. A nil source
// comes with the error explaining why it is unavailable, which the API
// returns to callers instead of failing at startup.
type Sources struct {
	Airtable    AirtableSource
	AirtableErr error

	Sheets    SheetsSource
	SheetsErr error

	// Audit receives one event per upstream call. Never nil after Build.
	Audit audit.Recorder
	// AuditLog is nil when no audit database is configured.
	AuditLog audit.Reader

	cleanups []CleanupFunc
}

// AddCleanup registers fn to run on Close, in reverse order.
func (s *Sources) AddCleanup(fn CleanupFunc) {
	s.cleanups = append(s.cleanups, fn)
}

// Close releases every resource opened by Build.
func (s *Sources) Close() error {
	var errs []error
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.cleanups = nil
	return errors.Join(errs...)
}
