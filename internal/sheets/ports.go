package sheets

import (
	"context"

	"ipvops/internal/core"
)

// Ports for outbound adapters.
type (
	// RangeReader reads one A1 range and reshapes it into header-keyed rows.
	RangeReader interface {
		GetRange(ctx context.Context, rng string) ([]core.SheetRow, error)
	}

	// Pinger checks that the backing spreadsheet is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
