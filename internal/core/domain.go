package core

import "fmt"

const (
	// MaxPageSize is the largest page Airtable serves in one list-records call.
	MaxPageSize = 100
)

type (
	// Record is one Airtable row as returned by the list-records endpoint.
	Record struct {
		ID          string         `json:"id"`
		CreatedTime string         `json:"createdTime"`
		Fields      map[string]any `json:"fields"`
	}

	// Page is a single list-records response. An empty Offset marks the last page.
	Page struct {
		Records []Record `json:"records"`
		Offset  string   `json:"offset,omitempty"`
	}

	// PageQuery holds the optional list-records parameters. Zero values are omitted.
	PageQuery struct {
		MaxRecords      int
		PageSize        int
		View            string
		FilterByFormula string
		Offset          string
	}

	// Table describes one table of an Airtable base.
	Table struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		PrimaryFieldID string `json:"primaryFieldId,omitempty"`
	}

	// SheetRow maps a column header to its cell value, nil when the row is short.
	SheetRow map[string]any
)

// ClampPageSize bounds n to [1, MaxPageSize]; non-positive values mean "use the maximum".
func ClampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// RowsFromValues turns a values matrix into header-keyed rows. The first row is
// the header; an empty matrix yields an empty, non-nil slice.
func RowsFromValues(values [][]any) []SheetRow {
	if len(values) == 0 {
		return []SheetRow{}
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = fmt.Sprint(h)
	}

	rows := make([]SheetRow, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(SheetRow, len(headers))
		for i, h := range headers {
			if i < len(raw) {
				row[h] = raw[i]
			} else {
				row[h] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows
}
