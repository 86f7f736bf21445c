package database

import (
	"context"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
	"github.com/coldbase/coldbase/collection"
)

func TestCreateAndGetCollection(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	col, err := db.CreateCollection("orders")
	AssertNil(err)
	AssertNotNil(col)

	got, exists := db.GetCollection("orders")
	AssertEqual(exists, true)
	AssertEqual(got, col)
}

func TestCreateCollection_Duplicate(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	_, err := db.CreateCollection("orders")
	AssertNil(err)

	_, err = db.CreateCollection("orders")
	AssertNotNil(err)
}

func TestCreateCollection_InvalidName(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	_, err := db.CreateCollection("has spaces")
	AssertNotNil(err)
}

func TestListCollections_Sorted(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	_, _ = db.CreateCollection("zebra")
	_, _ = db.CreateCollection("alpha")

	AssertEqualJson(db.ListCollections(), []string{"alpha", "zebra"})
}

func TestDropCollection(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	_, err := db.CreateCollection("orders")
	AssertNil(err)

	ctx := context.Background()
	AssertNil(db.DropCollection(ctx, "orders"))

	_, exists := db.GetCollection("orders")
	AssertEqual(exists, false)
}

func TestDropCollection_NotFound(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})

	err := db.DropCollection(context.Background(), "missing")
	AssertNotNil(err)
}

func TestLoad_DiscoversExistingCollections(t *testing.T) {
	store := memblob.New()

	col, err := collection.New(store, "orders", collection.Options{})
	AssertNil(err)
	AssertNil(col.Put(context.Background(), "o1", []byte(`{"id":"o1"}`)))

	db := NewDatabase(Config{Store: store})
	AssertNil(db.Load(context.Background()))
	AssertEqual(db.GetStatus(), StatusOperating)

	_, exists := db.GetCollection("orders")
	AssertEqual(exists, true)
}

func TestLoad_EmptyStoreIsOperating(t *testing.T) {
	db := NewDatabase(Config{Store: memblob.New()})
	AssertNil(db.Load(context.Background()))
	AssertEqual(db.GetStatus(), StatusOperating)
	AssertEqualJson(db.ListCollections(), []string{})
}
