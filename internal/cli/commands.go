package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ipvops/internal/amqp"
	"ipvops/internal/audit"
	"ipvops/internal/backend"
	"ipvops/internal/core"
)

// RecordOutput is the CLI shape of one record: id and fields only.
type RecordOutput struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Records checks the connection with a one-record page, then prints every
// record of the table.
func Records(ctx context.Context, at backend.AirtableSource, q core.PageQuery, w io.Writer) (int, error) {
	if err := at.Ping(ctx); err != nil {
		return 0, fmt.Errorf("connection test failed: %w", err)
	}
	records, err := at.FetchAllRecords(ctx, q)
	if err != nil {
		return len(records), fmt.Errorf("fetch records: %w", err)
	}
	return len(records), printRecords(w, records)
}

// Month prints the records of one calendar month.
func Month(ctx context.Context, at backend.AirtableSource, year, month int, q core.PageQuery, w io.Writer) (int, error) {
	records, err := at.GetByMonth(ctx, year, month, q)
	if err != nil {
		return len(records), err
	}
	return len(records), printRecords(w, records)
}

// Tables prints a numbered list of the base's tables.
func Tables(ctx context.Context, at backend.AirtableSource, w io.Writer) error {
	tables, err := at.ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		_, err = fmt.Fprintln(w, "No tables found in the base.")
		return err
	}
	fmt.Fprintln(w, "Available tables:")
	for i, t := range tables {
		if _, err := fmt.Fprintf(w, "%d. %s (ID: %s)\n", i+1, t.Name, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// Sheet prints the rows of an A1 range.
func Sheet(ctx context.Context, sh backend.SheetsSource, rng string, w io.Writer) (int, error) {
	rows, err := sh.GetRange(ctx, rng)
	if err != nil {
		return 0, err
	}
	return len(rows), writeIndented(w, rows)
}

// AuditRecent prints the newest events of the audit database.
func AuditRecent(ctx context.Context, r audit.Reader, limit int, w io.Writer) error {
	events, err := r.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		if _, err := fmt.Fprintln(w, formatEvent(e)); err != nil {
			return err
		}
	}
	return nil
}

// EventConsumer is the consuming side of the audit broker.
type EventConsumer interface {
	ConsumeFetchEvents(ctx context.Context, handler func(*amqp.FetchEventMessage) error) error
}

// AuditTail prints events from the broker as they arrive, until ctx ends.
func AuditTail(ctx context.Context, c EventConsumer, w io.Writer) error {
	err := c.ConsumeFetchEvents(ctx, func(msg *amqp.FetchEventMessage) error {
		_, err := fmt.Fprintln(w, formatEvent(msg.Event))
		return err
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func formatEvent(e audit.Event) string {
	line := fmt.Sprintf("%s %-8s %-12s %-5s records=%d took=%dms",
		e.OccurredAt.Format(time.RFC3339), e.Source, e.Operation, e.Outcome, e.Records, e.DurationMS)
	if e.ErrorKind != "" {
		line += " error=" + e.ErrorKind
	}
	if e.RequestID != "" {
		line += " request_id=" + e.RequestID
	}
	return line
}

func printRecords(w io.Writer, records []core.Record) error {
	out := make([]RecordOutput, 0, len(records))
	for _, r := range records {
		fields := r.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		out = append(out, RecordOutput{ID: r.ID, Fields: fields})
	}
	return writeIndented(w, out)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
