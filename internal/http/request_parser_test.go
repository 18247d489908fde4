package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ipvops/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantOK    bool
		wantErr   bool
		wantYear  int
		wantMonth int
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2024"}, "month": {"12"}},
			wantOK:    true,
			wantYear:  2024,
			wantMonth: 12,
		},
		{
			name:   "neither value",
			query:  url.Values{"view": {"Grid"}},
			wantOK: false,
		},
		{
			name:    "only year",
			query:   url.Values{"year": {"2023"}},
			wantErr: true,
		},
		{
			name:    "only month",
			query:   url.Values{"month": {"5"}},
			wantErr: true,
		},
		{
			name:    "non-numeric month",
			query:   url.Values{"year": {"2024"}, "month": {"may"}},
			wantErr: true,
		},
		{
			name:    "negative year",
			query:   url.Values{"year": {"-5"}, "month": {"3"}},
			wantErr: true,
		},
		{
			name:    "five digit year",
			query:   url.Values{"year": {"99999"}, "month": {"3"}},
			wantErr: true,
		},
		{
			name:      "year lower bound",
			query:     url.Values{"year": {"1"}, "month": {"1"}},
			wantOK:    true,
			wantYear:  1,
			wantMonth: 1,
		},
		{
			// Month range checks belong to the month filter.
			name:      "out of range month passes through",
			query:     url.Values{"year": {"2024"}, "month": {"13"}},
			wantOK:    true,
			wantYear:  2024,
			wantMonth: 13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok, err := ParseMonthParams(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, core.ErrValidation) {
					t.Errorf("error %v is not a validation error", err)
				}
				return
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if result.Year != tt.wantYear || result.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", result.Year, result.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestParsePageQuery(t *testing.T) {
	q, err := ParsePageQuery(url.Values{})
	if err != nil {
		t.Fatalf("ParsePageQuery() error = %v", err)
	}
	if q.MaxRecords != core.MaxPageSize {
		t.Errorf("MaxRecords = %d, want %d", q.MaxRecords, core.MaxPageSize)
	}

	q, err = ParsePageQuery(url.Values{
		"max_records":       {"10"},
		"view":              {" Grid\x00 "},
		"filter_by_formula": {"{Campus}='Norte'"},
		"offset":            {"itr1/rec2"},
	})
	if err != nil {
		t.Fatalf("ParsePageQuery() error = %v", err)
	}
	want := core.PageQuery{MaxRecords: 10, View: "Grid", FilterByFormula: "{Campus}='Norte'", Offset: "itr1/rec2"}
	if q != want {
		t.Errorf("ParsePageQuery() = %+v, want %+v", q, want)
	}

	for _, bad := range []string{"0", "101", "-1", "1e2"} {
		if _, err := ParsePageQuery(url.Values{"max_records": {bad}}); !errors.Is(err, core.ErrValidation) {
			t.Errorf("max_records=%q: error = %v, want validation error", bad, err)
		}
	}
}

func TestParseRangeParams(t *testing.T) {
	tests := []struct {
		name    string
		sheet   string
		query   url.Values
		want    string
		wantErr bool
	}{
		{"defaults", "Hoja1", url.Values{}, "'Hoja1'!A1:Z1000", false},
		{"explicit window", "Ventas", url.Values{"start_col": {"b"}, "end_col": {"F"}, "start_row": {"3"}, "end_row": {"9"}}, "'Ventas'!B3:F9", false},
		{"zero start row", "Hoja1", url.Values{"start_row": {"0"}}, "", true},
		{"non-numeric end row", "Hoja1", url.Values{"end_row": {"all"}}, "", true},
		{"numeric column", "Hoja1", url.Values{"end_col": {"26"}}, "", true},
		{"blank sheet", "  ", url.Values{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRangeParams(tt.sheet, tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRangeParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRangeParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeRangeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{"valid", `{"range": "Hoja1!A1:C10"}`, "Hoja1!A1:C10", ""},
		{"unknown fields ignored", `{"range": "Hoja1", "extra": 1}`, "Hoja1", ""},
		{"empty body", ``, "", "request body is empty"},
		{"blank range", `{"range": " "}`, "", "range is required"},
		{"missing range", `{}`, "", "range is required"},
		{"malformed", `{"range": 5}`, "", "invalid JSON body"},
		{"two objects", `{"range": "A"}{"range": "B"}`, "", "single JSON object"},
		{"too large", `{"range": "` + strings.Repeat("A", maxBodyBytes) + `"}`, "", "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sheets/data", strings.NewReader(tt.body))
			got, err := DecodeRangeRequest(httptest.NewRecorder(), req)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("DecodeRangeRequest() error = %v", err)
				}
				if got.Range != tt.want {
					t.Errorf("Range = %q, want %q", got.Range, tt.want)
				}
				return
			}
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("DecodeRangeRequest() error = %v, want validation error", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Hoja 1  ", "Hoja 1"},
		{"a\x00b\x07c", "abc"},
		{"line\tone", "line\tone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind core.Kind
		want int
	}{
		{core.KindValidation, http.StatusBadRequest},
		{core.KindCanceled, http.StatusServiceUnavailable},
		{core.KindConfiguration, http.StatusInternalServerError},
		{core.KindTransient, http.StatusInternalServerError},
		{core.KindPermanent, http.StatusInternalServerError},
		{core.KindDecode, http.StatusInternalServerError},
		{core.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
