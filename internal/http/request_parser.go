package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ipvops/internal/core"
	"ipvops/internal/sheets"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// MonthParams holds the optional year/month filter of the records route.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month. ok is false when neither is given.
// The month range itself is checked by the Airtable client.
func ParseMonthParams(query url.Values) (params MonthParams, ok bool, err error) {
	rawYear := strings.TrimSpace(query.Get("year"))
	rawMonth := strings.TrimSpace(query.Get("month"))
	if rawYear == "" && rawMonth == "" {
		return MonthParams{}, false, nil
	}
	if rawYear == "" || rawMonth == "" {
		return MonthParams{}, false, core.Validationf("year and month must be given together")
	}

	if params.Year, err = strconv.Atoi(rawYear); err != nil {
		return MonthParams{}, false, core.Validationf("year must be an integer, got %q", rawYear)
	}
	if params.Year < 1 || params.Year > 9999 {
		return MonthParams{}, false, core.Validationf("year must be between 1 and 9999, got %d", params.Year)
	}
	if params.Month, err = strconv.Atoi(rawMonth); err != nil {
		return MonthParams{}, false, core.Validationf("month must be an integer, got %q", rawMonth)
	}
	return params, true, nil
}

// ParsePageQuery reads max_records, view, filter_by_formula and offset.
// max_records defaults to core.MaxPageSize and must lie in 1..MaxPageSize.
func ParsePageQuery(query url.Values) (core.PageQuery, error) {
	maxRecords, err := intParam(query, "max_records", core.MaxPageSize, 1, core.MaxPageSize)
	if err != nil {
		return core.PageQuery{}, err
	}
	return core.PageQuery{
		MaxRecords:      maxRecords,
		View:            sanitizeInput(query.Get("view")),
		FilterByFormula: strings.TrimSpace(query.Get("filter_by_formula")),
		Offset:          sanitizeInput(query.Get("offset")),
	}, nil
}

// ParseRangeParams builds the A1 range for sheet from start_col, end_col,
// start_row and end_row, defaulting to A1:Z1000.
func ParseRangeParams(sheet string, query url.Values) (string, error) {
	startRow, err := intParam(query, "start_row", sheets.DefaultStartRow, 1, 0)
	if err != nil {
		return "", err
	}
	endRow, err := intParam(query, "end_row", sheets.DefaultEndRow, 1, 0)
	if err != nil {
		return "", err
	}
	return sheets.A1Range(
		sanitizeInput(sheet),
		stringParam(query, "start_col", sheets.DefaultStartCol),
		stringParam(query, "end_col", sheets.DefaultEndCol),
		startRow,
		endRow,
	)
}

// RangeRequest is the body of POST /api/sheets/data.
type RangeRequest struct {
	Range string `json:"range"`
}

// DecodeRangeRequest reads and validates a RangeRequest body.
func DecodeRangeRequest(w http.ResponseWriter, r *http.Request) (RangeRequest, error) {
	var req RangeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		return RangeRequest{}, err
	}
	req.Range = sanitizeInput(req.Range)
	if req.Range == "" {
		return RangeRequest{}, core.Validationf("range is required")
	}
	return req, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validationf("request body is empty")
		case errors.As(err, &maxErr):
			return core.Validationf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return core.Validationf("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return core.Validationf("request body must hold a single JSON object")
	}
	return nil
}

// intParam parses an optional integer parameter. hi <= 0 means unbounded.
func intParam(query url.Values, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.Validationf("%s must be an integer, got %q", name, raw)
	}
	if n < lo || (hi > 0 && n > hi) {
		if hi > 0 {
			return 0, core.Validationf("%s must be between %d and %d, got %d", name, lo, hi, n)
		}
		return 0, core.Validationf("%s must be at least %d, got %d", name, lo, n)
	}
	return n, nil
}

func stringParam(query url.Values, name, def string) string {
	if v := sanitizeInput(query.Get(name)); v != "" {
		return v
	}
	return def
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
