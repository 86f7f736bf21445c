package apicollectionv1

import (
	"context"
	"fmt"

	"github.com/fulldump/box"

	"github.com/coldbase/coldbase/collection"
)

func errNotFound(id string) error {
	return fmt.Errorf("document '%s' not found", id)
}

func getHandle(ctx context.Context) (*collection.Collection, string, error) {
	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")

	col, exists := s.Handle(collectionName)
	if !exists {
		return nil, collectionName, fmt.Errorf("collection '%s' not found", collectionName)
	}
	return col, collectionName, nil
}
