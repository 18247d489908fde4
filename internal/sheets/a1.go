package sheets

import (
	"strconv"
	"strings"

	"ipvops/internal/core"
)

// Default window used by the range endpoint when bounds are omitted.
const (
	DefaultStartCol = "A"
	DefaultEndCol   = "Z"
	DefaultStartRow = 1
	DefaultEndRow   = 1000
)

// A1Range builds a quoted A1 range such as 'Hoja 1'!A1:Z1000.
func A1Range(sheet, startCol, endCol string, startRow, endRow int) (string, error) {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return "", core.Validationf("sheet name is required")
	}
	startCol = strings.ToUpper(strings.TrimSpace(startCol))
	endCol = strings.ToUpper(strings.TrimSpace(endCol))
	if ColumnIndex(startCol) < 0 {
		return "", core.Validationf("invalid start column %q", startCol)
	}
	if ColumnIndex(endCol) < 0 {
		return "", core.Validationf("invalid end column %q", endCol)
	}
	if ColumnIndex(endCol) < ColumnIndex(startCol) {
		return "", core.Validationf("end column %s is before start column %s", endCol, startCol)
	}
	if startRow < 1 {
		return "", core.Validationf("start row must be >= 1, got %d", startRow)
	}
	if endRow < startRow {
		return "", core.Validationf("end row %d is before start row %d", endRow, startRow)
	}
	return QuoteSheet(sheet) + "!" + startCol + strconv.Itoa(startRow) + ":" + endCol + strconv.Itoa(endRow), nil
}

// QuoteSheet wraps a sheet name in single quotes, doubling embedded quotes.
func QuoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ColumnIndex converts a column name (A, Z, AA, ...) to a zero-based index, or -1.
func ColumnIndex(col string) int {
	if col == "" || len(col) > 3 {
		return -1
	}
	n := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return -1
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1
}

// Window is a parsed A1 range. EndCol -1 and zero rows mean open-ended.
type Window struct {
	Sheet    string
	StartCol int
	EndCol   int
	StartRow int
	EndRow   int
}

// ParseA1 splits a range like 'Sheet'!B2:D10, Sheet!A:C or Sheet into its parts.
// Columns are zero-based and rows one-based.
func ParseA1(rng string) (Window, error) {
	rng = strings.TrimSpace(rng)
	if rng == "" {
		return Window{}, core.Validationf("range is required")
	}
	w := Window{StartCol: 0, EndCol: -1}

	sheet, cells := rng, ""
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		sheet, cells = rng[:i], rng[i+1:]
	}
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	w.Sheet = sheet
	if w.Sheet == "" {
		return Window{}, core.Validationf("range %q has no sheet name", rng)
	}
	if cells == "" {
		return w, nil
	}

	from, to, _ := strings.Cut(cells, ":")
	sc, sr, ok := splitCell(from)
	if !ok {
		return Window{}, core.Validationf("invalid range %q", rng)
	}
	ec, er := sc, sr
	if to != "" {
		if ec, er, ok = splitCell(to); !ok {
			return Window{}, core.Validationf("invalid range %q", rng)
		}
	}
	w.StartCol, w.StartRow, w.EndCol, w.EndRow = max(sc, 0), sr, ec, er
	return w, nil
}

// splitCell parses "B12", "B" or "12".
func splitCell(cell string) (col, row int, ok bool) {
	cell = strings.ToUpper(strings.TrimSpace(cell))
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		i++
	}
	col = -1
	if i > 0 {
		if col = ColumnIndex(cell[:i]); col < 0 {
			return 0, 0, false
		}
	}
	if i < len(cell) {
		n, err := strconv.Atoi(cell[i:])
		if err != nil || n < 1 {
			return 0, 0, false
		}
		row = n
	}
	if i == 0 && row == 0 {
		return 0, 0, false
	}
	return col, row, true
}
