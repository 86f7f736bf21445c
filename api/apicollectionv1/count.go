package apicollectionv1

import (
	"context"
)

type countRequest struct {
	At *int64 `json:"at"`
}

type countResponse struct {
	Count int `json:"count"`
}

func count(ctx context.Context, input *countRequest) (*countResponse, error) {

	col, _, err := getHandle(ctx)
	if err != nil {
		return nil, err
	}

	n, err := col.Count(ctx, input.At)
	if err != nil {
		return nil, err
	}
	return &countResponse{Count: n}, nil
}
