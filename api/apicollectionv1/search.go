package apicollectionv1

import (
	"context"
	"fmt"

	"github.com/fulldump/box"

	"github.com/coldbase/coldbase/vector"
)

type searchRequest struct {
	Query         []float64      `json:"query"`
	Limit         int            `json:"limit"`
	Threshold     *float64       `json:"threshold"`
	Where         map[string]any `json:"where"`
	IncludeVector bool           `json:"includeVector"`
	At            *int64         `json:"at"`
}

type searchResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Data  []byte  `json:"data"`
}

func search(ctx context.Context, input *searchRequest) ([]searchResult, error) {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")

	vc, exists := s.VectorHandle(collectionName)
	if !exists {
		return nil, fmt.Errorf("collection '%s' is not a vector collection", collectionName)
	}

	results, err := vc.Search(ctx, vector.SearchOptions{
		Query:         input.Query,
		Limit:         input.Limit,
		Threshold:     input.Threshold,
		Where:         input.Where,
		IncludeVector: input.IncludeVector,
		At:            input.At,
	})
	if err != nil {
		return nil, err
	}

	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{ID: r.ID, Score: r.Score, Data: r.Data}
	}
	return out, nil
}
