package service

import (
	"context"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
	"github.com/coldbase/coldbase/database"
	"github.com/coldbase/coldbase/vector"
)

func newTestService() *Service {
	db := database.NewDatabase(database.Config{Store: memblob.New()})
	return NewService(db)
}

func TestCreateCollection(t *testing.T) {
	s := newTestService()

	col, err := s.CreateCollection("orders")
	AssertNil(err)
	AssertEqual(col.Name, "orders")
	AssertEqual(col.Total, 0)
}

func TestCreateCollection_AlreadyExists(t *testing.T) {
	s := newTestService()

	_, err := s.CreateCollection("orders")
	AssertNil(err)

	_, err = s.CreateCollection("orders")
	AssertEqual(err, ErrorCollectionAlreadyExists)
}

func TestGetCollection_ReflectsWrites(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.CreateCollection("orders")
	AssertNil(err)

	handle, ok := s.Handle("orders")
	AssertEqual(ok, true)
	AssertNil(handle.Put(ctx, "o1", []byte(`{"id":"o1"}`)))

	col, err := s.GetCollection(ctx, "orders")
	AssertNil(err)
	AssertEqual(col.Total, 1)
}

func TestGetCollection_NotFound(t *testing.T) {
	s := newTestService()

	_, err := s.GetCollection(context.Background(), "missing")
	AssertEqual(err, ErrorCollectionNotFound)
}

func TestListCollections(t *testing.T) {
	s := newTestService()

	_, _ = s.CreateCollection("orders")
	_, _ = s.CreateCollection("customers")

	list, err := s.ListCollections(context.Background())
	AssertNil(err)
	AssertEqual(len(list), 2)
}

func TestDeleteCollection(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.CreateCollection("orders")
	AssertNil(err)

	AssertNil(s.DeleteCollection(ctx, "orders"))

	_, err = s.GetCollection(ctx, "orders")
	AssertEqual(err, ErrorCollectionNotFound)

	_, ok := s.Handle("orders")
	AssertEqual(ok, false)
}

func TestCreateVectorCollection(t *testing.T) {
	s := newTestService()

	col, err := s.CreateVectorCollection("embeddings", vector.Options{
		Dimension: 3,
		Metric:    vector.Cosine,
	})
	AssertNil(err)
	AssertEqual(col.Name, "embeddings")

	vc, ok := s.VectorHandle("embeddings")
	AssertEqual(ok, true)
	AssertNotNil(vc)

	_, ok = s.Handle("embeddings")
	AssertEqual(ok, true)
}

func TestCreateVectorCollection_InvalidOptionsRollsBack(t *testing.T) {
	s := newTestService()

	_, err := s.CreateVectorCollection("embeddings", vector.Options{
		Dimension: 0,
		Metric:    vector.Cosine,
	})
	AssertNotNil(err)

	_, ok := s.Handle("embeddings")
	AssertEqual(ok, false)
}

func TestDeleteCollection_RemovesVectorHandle(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.CreateVectorCollection("embeddings", vector.Options{
		Dimension: 3,
		Metric:    vector.Cosine,
	})
	AssertNil(err)

	AssertNil(s.DeleteCollection(ctx, "embeddings"))

	_, ok := s.VectorHandle("embeddings")
	AssertEqual(ok, false)
}
