package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsFromValues(t *testing.T) {
	tests := []struct {
		name   string
		values [][]any
		want   []SheetRow
	}{
		{
			name:   "empty sheet",
			values: nil,
			want:   []SheetRow{},
		},
		{
			name:   "header only",
			values: [][]any{{"A", "B"}},
			want:   []SheetRow{},
		},
		{
			name:   "short row is padded with nil",
			values: [][]any{{"A", "B"}, {"x"}},
			want:   []SheetRow{{"A": "x", "B": nil}},
		},
		{
			name:   "non-string header",
			values: [][]any{{2025.0, "B"}, {"x", "y"}},
			want:   []SheetRow{{"2025": "x", "B": "y"}},
		},
		{
			name:   "extra cells are dropped",
			values: [][]any{{"A"}, {"1", "2", "3"}},
			want:   []SheetRow{{"A": "1"}},
		},
		{
			name:   "header cells are kept verbatim",
			values: [][]any{{" Campus ", "Total"}, {"Norte", "120"}, {"Brisas", "80"}},
			want: []SheetRow{
				{" Campus ": "Norte", "Total": "120"},
				{" Campus ": "Brisas", "Total": "80"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowsFromValues(tt.values))
		})
	}
}

func TestClampPageSize(t *testing.T) {
	for in, want := range map[int]int{-1: 100, 0: 100, 1: 1, 50: 50, 100: 100, 101: 100} {
		assert.Equal(t, want, ClampPageSize(in), "ClampPageSize(%d)", in)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"config", &ConfigError{Component: "airtable", Missing: []string{"AIRTABLE_PAT"}}, KindConfiguration},
		{"validation", Validationf("bad month %d", 13), KindValidation},
		{"transient", &FetchError{Kind: ErrTransient, Attempts: 3, Err: errors.New("connection reset")}, KindTransient},
		{"permanent", &FetchError{Kind: ErrPermanent, StatusCode: 404, Body: "NOT_FOUND"}, KindPermanent},
		{"decode", &FetchError{Kind: ErrDecode, Err: errors.New("unexpected EOF")}, KindDecode},
		{"page limit", fmt.Errorf("%w: 1000 pages", ErrPageLimit), KindPermanent},
		{"canceled", context.Canceled, KindCanceled},
		{"wrapped transient", fmt.Errorf("fetch page 2: %w", &FetchError{Kind: ErrTransient}), KindTransient},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Component: "airtable", Missing: []string{"AIRTABLE_BASE_ID", "AIRTABLE_PAT"}}
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "airtable configuration is missing or invalid: set AIRTABLE_BASE_ID, AIRTABLE_PAT", err.Error())

	cause := errors.New("open credentials.json: no such file or directory")
	err = &ConfigError{Component: "sheets", Err: cause}
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "credentials.json")
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Kind: ErrPermanent, StatusCode: 422, Body: `{"error":"INVALID_FILTER"}`}
	assert.Equal(t, `Error 422: {"error":"INVALID_FILTER"}`, err.Error())
	assert.ErrorIs(t, err, ErrPermanent)
	assert.NotErrorIs(t, err, ErrTransient)

	err = &FetchError{Kind: ErrTransient, StatusCode: 429, Attempts: 3, Err: ErrRateLimited}
	assert.Equal(t, "Error 429 after 3 attempt(s): rate limited", err.Error())
	assert.ErrorIs(t, err, ErrRateLimited)
}
