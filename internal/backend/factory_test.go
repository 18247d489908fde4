package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipvops/internal/audit"
	"ipvops/internal/config"
	"ipvops/internal/core"
	"ipvops/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Hoja1.csv"), []byte("Campus,Asistencia\nNorte,120\n"), 0o644))
	return &config.Config{
		AirtableAPIURL:   "https://api.airtable.com/v0",
		AirtableMaxPages: 1000,
		SheetsBackend:    SheetsMemory,
		SheetsDataDir:    dir,
		FetchMaxAttempts: 3,
	}
}

func TestBuild_MissingAirtableIsNotFatal(t *testing.T) {
	src, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Nil(t, src.Airtable)
	assert.ErrorIs(t, src.AirtableErr, core.ErrConfiguration)
	assert.Contains(t, src.AirtableErr.Error(), "AIRTABLE_PAT")

	require.NotNil(t, src.Sheets)
	rows, err := src.Sheets.GetRange(context.Background(), "Hoja1!A1:B10")
	require.NoError(t, err)
	assert.Equal(t, []core.SheetRow{{"Campus": "Norte", "Asistencia": "120"}}, rows)

	assert.Equal(t, audit.Nop{}, src.Audit)
	assert.Nil(t, src.AuditLog)
}

func TestBuild_GoogleWithoutIDKeepsError(t *testing.T) {
	cfg := testConfig(t)
	cfg.SheetsBackend = SheetsGoogle
	cfg.AirtableBaseID, cfg.AirtableTableName, cfg.AirtablePAT = "app", "IPV", "pat"

	src, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.NotNil(t, src.Airtable)
	assert.Nil(t, src.Sheets)
	assert.ErrorIs(t, src.SheetsErr, core.ErrConfiguration)
	assert.Contains(t, src.SheetsErr.Error(), "GOOGLE_SHEET_ID")
}

func TestBuild_AuditStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditDBPath = filepath.Join(t.TempDir(), "audit.db")

	src, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &storage.AuditRepository{}, src.Audit)
	require.NotNil(t, src.AuditLog)

	e := audit.NewEvent(audit.SourceSheets, "get_range", nil)
	require.NoError(t, src.Audit.Record(context.Background(), e))
	events, err := src.AuditLog.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)

	require.NoError(t, src.Close())
}

func TestBuild_UnknownSheetsBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.SheetsBackend = "excel"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excel")
}

func TestSourcesCloseRunsInReverse(t *testing.T) {
	var order []int
	src := &Sources{}
	src.AddCleanup(func() error { order = append(order, 1); return nil })
	src.AddCleanup(func() error { order = append(order, 2); return nil })

	require.NoError(t, src.Close())
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, src.Close())
	assert.Equal(t, []int{2, 1}, order)
}
