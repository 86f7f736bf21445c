package apicollectionv1

import (
	"context"

	"github.com/coldbase/coldbase/collection"
)

type findRequest struct {
	Where  map[string]any `json:"where"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	At     *int64         `json:"at"`
}

type findItem struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

func find(ctx context.Context, input *findRequest) ([]findItem, error) {

	col, _, err := getHandle(ctx)
	if err != nil {
		return nil, err
	}

	records, err := col.Find(ctx, collection.FindOptions{
		Where:  input.Where,
		Limit:  input.Limit,
		Offset: input.Offset,
		At:     input.At,
	})
	if err != nil {
		return nil, err
	}

	result := make([]findItem, len(records))
	for i, rec := range records {
		result[i] = findItem{ID: rec.ID, Data: rec.Data}
	}
	return result, nil
}
