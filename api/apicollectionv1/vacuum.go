package apicollectionv1

import (
	"context"
)

// vacuum runs a synchronous dedup+tombstone-removal pass on demand.
func vacuum(ctx context.Context) (*maintenanceResponse, error) {

	col, _, err := getHandle(ctx)
	if err != nil {
		return nil, err
	}

	result, err := col.Vacuum(ctx)
	if err != nil {
		return nil, err
	}

	return &maintenanceResponse{
		RecordsRemoved: result.RecordsRemoved,
		DurationMs:     result.DurationMs,
	}, nil
}
