// Package memory serves sheet ranges from CSV files for local development.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ipvops/internal/core"
	ports "ipvops/internal/sheets"
)

var (
	_ ports.RangeReader = (*Store)(nil)
	_ ports.Pinger      = (*Store)(nil)
)

type Store struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

// New builds a store from in-memory grids keyed by sheet name.
func New(sheets map[string][][]string) *Store {
	s := &Store{sheets: make(map[string][][]string, len(sheets))}
	for name, grid := range sheets {
		s.Put(name, grid)
	}
	return s
}

// NewFromDir loads every *.csv file in dir as a sheet named after the file.
// A missing directory yields an empty store.
func NewFromDir(dir string) (*Store, error) {
	s := New(nil)
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list csv files: %w", err)
	}
	for _, p := range paths {
		grid, err := readCSV(p)
		if err != nil {
			return nil, err
		}
		s.Put(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)), grid)
	}
	return s, nil
}

// Put replaces the contents of a sheet.
func (s *Store) Put(name string, grid [][]string) {
	cp := make([][]string, len(grid))
	for i, row := range grid {
		cp[i] = trimTrailingEmpty(append([]string(nil), row...))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[name] = cp
}

// GetRange resolves an A1 range against the stored sheets.
func (s *Store) GetRange(_ context.Context, rng string) ([]core.SheetRow, error) {
	w, err := ports.ParseA1(rng)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	grid, ok := s.sheets[w.Sheet]
	s.mu.RUnlock()
	if !ok {
		return nil, &core.FetchError{
			Kind:       core.ErrPermanent,
			StatusCode: 400,
			Body:       fmt.Sprintf("Unable to parse range: %s", rng),
		}
	}

	var values [][]any
	for i, row := range grid {
		n := i + 1
		if w.StartRow > 0 && n < w.StartRow {
			continue
		}
		if w.EndRow > 0 && n > w.EndRow {
			break
		}
		values = append(values, window(row, w.StartCol, w.EndCol))
	}
	return core.RowsFromValues(values), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func window(row []string, from, to int) []any {
	out := []any{}
	for i := from; i < len(row); i++ {
		if to >= 0 && i > to {
			break
		}
		out = append(out, row[i])
	}
	return out
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	grid, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return grid, nil
}

// trimTrailingEmpty mimics the Sheets API, which omits trailing empty cells.
func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	return row
}
