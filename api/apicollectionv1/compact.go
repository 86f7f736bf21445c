package apicollectionv1

import (
	"context"
)

type maintenanceResponse struct {
	MutationsProcessed int   `json:"mutationsProcessed,omitempty"`
	RecordsRemoved     int   `json:"recordsRemoved,omitempty"`
	DurationMs         int64 `json:"durationMs"`
}

// compact runs a synchronous compaction pass, letting an operator collapse
// pending mutations into the snapshot outside of AutoCompact's schedule.
func compact(ctx context.Context) (*maintenanceResponse, error) {

	col, _, err := getHandle(ctx)
	if err != nil {
		return nil, err
	}

	result, err := col.Compact(ctx)
	if err != nil {
		return nil, err
	}

	return &maintenanceResponse{
		MutationsProcessed: result.MutationsProcessed,
		DurationMs:         result.DurationMs,
	}, nil
}
