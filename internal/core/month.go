package core

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// MonthFilter selects records whose date field lies inside one calendar month.
//
// The lower bound uses IS_AFTER, so a record dated exactly on Start is excluded
// unless InclusiveStart is set.
type MonthFilter struct {
	Field          string
	Start          time.Time
	End            time.Time
	InclusiveStart bool
}

// NewMonthFilter computes [first day of month, first day of next month) for the
// given year and month. December rolls over into January of the next year.
func NewMonthFilter(field string, year, month int) (MonthFilter, error) {
	if month < 1 || month > 12 {
		return MonthFilter{}, Validationf("month must be between 1 and 12, got %d", month)
	}
	if strings.TrimSpace(field) == "" {
		return MonthFilter{}, Validationf("date field name is empty")
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return MonthFilter{
		Field: field,
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}, nil
}

// StartDate returns the lower bound as YYYY-MM-DD.
func (f MonthFilter) StartDate() string { return f.Start.Format(dateLayout) }

// EndDate returns the exclusive upper bound as YYYY-MM-DD.
func (f MonthFilter) EndDate() string { return f.End.Format(dateLayout) }

// Formula renders the filter in Airtable's formula language.
func (f MonthFilter) Formula() string {
	field := "{" + strings.ReplaceAll(f.Field, "}", `\}`) + "}"
	start, end := f.StartDate(), f.EndDate()

	lower := fmt.Sprintf("IS_AFTER(%s, '%s')", field, start)
	if f.InclusiveStart {
		lower = fmt.Sprintf("OR(IS_SAME(%s, '%s', 'day'), %s)", field, start, lower)
	}
	return fmt.Sprintf("AND(%s, IS_BEFORE(%s, '%s'))", lower, field, end)
}
