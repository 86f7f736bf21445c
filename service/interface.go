package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/coldbase/coldbase/collection"
	"github.com/coldbase/coldbase/vector"
)

var ErrorCollectionNotFound = errors.New("collection not found")

// Servicer is the collection-admin facade the api package drives: it never
// exposes blobstore.Store or *database.Database directly, only the small
// set of operations a resource tree needs to create, inspect, and drop
// collections, plus handles to the underlying collection for data ops.
type Servicer interface {
	CreateCollection(name string) (*Collection, error)
	CreateVectorCollection(name string, opts vector.Options) (*Collection, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Handle(name string) (*collection.Collection, bool)
	VectorHandle(name string) (*vector.Collection, bool)
}
