package apicollectionv1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/coldbase/coldbase/service"
)

func getCollection(ctx context.Context) (*CollectionResponse, error) {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")

	col, err := s.GetCollection(ctx, collectionName)
	if err == service.ErrorCollectionNotFound {
		box.GetResponse(ctx).WriteHeader(http.StatusNotFound)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return &CollectionResponse{Name: col.Name, Total: col.Total}, nil
}
