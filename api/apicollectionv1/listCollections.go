package apicollectionv1

import (
	"context"
	"net/http"
)

func listCollections(ctx context.Context, w http.ResponseWriter) (interface{}, error) {

	s := GetServicer(ctx)

	result, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	return result, nil
}
