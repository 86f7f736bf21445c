package apicollectionv1

import (
	"context"
)

type getManyRequest struct {
	IDs []string `json:"ids"`
}

type getManyItem struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

func getMany(ctx context.Context, input *getManyRequest) ([]getManyItem, error) {

	col, _, err := getHandle(ctx)
	if err != nil {
		return nil, err
	}

	records, err := col.GetMany(ctx, input.IDs)
	if err != nil {
		return nil, err
	}

	result := make([]getManyItem, 0, len(records))
	for id, rec := range records {
		result = append(result, getManyItem{ID: id, Data: rec.Data})
	}
	return result, nil
}
