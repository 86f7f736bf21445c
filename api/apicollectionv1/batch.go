package apicollectionv1

import (
	"context"

	"github.com/coldbase/coldbase/collection"
)

type batchItem struct {
	ID   string `json:"id"`
	Data []byte `json:"data"` // omit or null to delete
}

type batchRequest struct {
	Items []batchItem `json:"items"`
}

func batch(ctx context.Context, input *batchRequest) error {

	col, _, err := getHandle(ctx)
	if err != nil {
		return err
	}

	writes := make([]collection.BatchWrite, len(input.Items))
	for i, item := range input.Items {
		writes[i] = collection.BatchWrite{ID: item.ID, Data: item.Data}
	}

	return col.Batch(ctx, writes)
}
