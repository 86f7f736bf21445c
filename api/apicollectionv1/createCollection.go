package apicollectionv1

import (
	"context"
	"net/http"

	"github.com/coldbase/coldbase/service"
	"github.com/coldbase/coldbase/vector"
)

type vectorConfig struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Normalize *bool  `json:"normalize"`
}

type createCollectionRequest struct {
	Name   string        `json:"name"`
	Vector *vectorConfig `json:"vector"`
}

func createCollection(ctx context.Context, w http.ResponseWriter, input *createCollectionRequest) (*CollectionResponse, error) {

	s := GetServicer(ctx)

	var col *service.Collection
	var err error
	if input.Vector != nil {
		col, err = s.CreateVectorCollection(input.Name, vector.Options{
			Dimension: input.Vector.Dimension,
			Metric:    vector.Metric(input.Vector.Metric),
			Normalize: input.Vector.Normalize,
		})
	} else {
		col, err = s.CreateCollection(input.Name)
	}

	if err == service.ErrorCollectionAlreadyExists {
		w.WriteHeader(http.StatusConflict)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return &CollectionResponse{Name: col.Name, Total: col.Total}, nil
}
