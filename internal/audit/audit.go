// Package audit describes upstream fetches made on behalf of API callers.
// Events carry metadata only, never record contents.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ipvops/internal/core"
)

const (
	SourceAirtable = "airtable"
	SourceSheets   = "sheets"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Event is one upstream operation as seen by the router.
type Event struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	RequestID  string            `json:"request_id,omitempty"`
	Source     string            `json:"source"`
	Operation  string            `json:"operation"`
	Params     map[string]string `json:"params,omitempty"`
	Records    int               `json:"records"`
	Outcome    string            `json:"outcome"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// NewEvent starts an event for source and operation. Empty params are dropped.
func NewEvent(source, operation string, params map[string]string) Event {
	clean := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" {
			clean[k] = v
		}
	}
	if len(clean) == 0 {
		clean = nil
	}
	return Event{
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Source:     source,
		Operation:  operation,
		Params:     clean,
		Outcome:    OutcomeOK,
	}
}

// Finish stamps the result of the operation onto e.
func (e *Event) Finish(records int, err error, took time.Duration) {
	e.Records = records
	e.DurationMS = took.Milliseconds()
	if err != nil {
		e.Outcome = OutcomeError
		e.ErrorKind = string(core.KindOf(err))
	}
}

// Recorder persists or forwards events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Reader lists the most recent events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, e Event) error

func (f RecorderFunc) Record(ctx context.Context, e Event) error { return f(ctx, e) }
