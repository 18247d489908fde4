package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipvops/internal/core"
)

func TestNewEventDropsEmptyParams(t *testing.T) {
	e := NewEvent(SourceAirtable, "get_by_month", map[string]string{"year": "2025", "month": "3", "view": ""})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, map[string]string{"year": "2025", "month": "3"}, e.Params)
	assert.Equal(t, OutcomeOK, e.Outcome)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Second)

	assert.Nil(t, NewEvent(SourceSheets, "get_range", map[string]string{"range": ""}).Params)
}

func TestFinish(t *testing.T) {
	e := NewEvent(SourceAirtable, "fetch_all", nil)
	e.Finish(42, nil, 1500*time.Millisecond)
	assert.Equal(t, 42, e.Records)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.Equal(t, OutcomeOK, e.Outcome)
	assert.Empty(t, e.ErrorKind)

	failed := NewEvent(SourceAirtable, "fetch_all", nil)
	failed.Finish(100, fmt.Errorf("fetch page 2: %w", &core.FetchError{Kind: core.ErrTransient, Attempts: 3}), time.Second)
	assert.Equal(t, OutcomeError, failed.Outcome)
	assert.Equal(t, string(core.KindTransient), failed.ErrorKind)
}

func TestMultiRecordsEverywhere(t *testing.T) {
	var got []string
	ok := RecorderFunc(func(_ context.Context, e Event) error {
		got = append(got, e.ID)
		return nil
	})
	boom := RecorderFunc(func(context.Context, Event) error { return errors.New("broker down") })

	e := NewEvent(SourceSheets, "get_range", nil)
	err := Multi{ok, boom, ok}.Record(context.Background(), e)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []string{e.ID, e.ID}, got)
	assert.NoError(t, Multi{}.Record(context.Background(), e))
	assert.NoError(t, Nop{}.Record(context.Background(), e))
}
