package vector

import (
	"context"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
	"github.com/coldbase/coldbase/collection"
)

func newTestCollection(t *testing.T, opts Options) *Collection {
	col, err := collection.New(memblob.New(), "embeddings", collection.Options{})
	AssertNil(err)
	vc, err := New(col, opts)
	AssertNil(err)
	return vc
}

func TestPut_RejectsWrongDimension(t *testing.T) {
	c := newTestCollection(t, Options{Dimension: 3, Metric: Cosine})
	err := c.Put(context.Background(), "v1", []byte(`{"vector":[1,2]}`))
	AssertNotNil(err)
	_, ok := err.(*VectorDimensionError)
	AssertEqual(ok, true)
}

func TestPut_RejectsMissingVector(t *testing.T) {
	c := newTestCollection(t, Options{Dimension: 3, Metric: Cosine})
	err := c.Put(context.Background(), "v1", []byte(`{"x":1}`))
	AssertNotNil(err)
	_, ok := err.(*InvalidVectorError)
	AssertEqual(ok, true)
}

func TestPut_NormalizesCosineVector(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, Options{Dimension: 2, Metric: Cosine})

	AssertNil(c.Put(ctx, "v1", []byte(`{"vector":[3,4]}`)))

	rec, ok, err := c.Get(ctx, "v1", nil)
	AssertNil(err)
	AssertEqual(ok, true)

	vec, err := extractVector(rec.Data)
	AssertNil(err)
	AssertEqual(len(vec), 2)
	// [3,4] normalized is [0.6, 0.8]
	AssertTrue(vec[0] > 0.59 && vec[0] < 0.61)
	AssertTrue(vec[1] > 0.79 && vec[1] < 0.81)
}

func TestSearch_CosineOrdersBySimilarityDescending(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, Options{Dimension: 2, Metric: Cosine})

	c.Put(ctx, "close", []byte(`{"vector":[1,0]}`))
	c.Put(ctx, "far", []byte(`{"vector":[0,1]}`))

	results, err := c.Search(ctx, SearchOptions{Query: []float64{1, 0}, Limit: 10})
	AssertNil(err)
	AssertEqual(len(results), 2)
	AssertEqual(results[0].ID, "close")
}

func TestSearch_EuclideanOrdersAscending(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, Options{Dimension: 1, Metric: Euclidean})

	c.Put(ctx, "near", []byte(`{"vector":[1]}`))
	c.Put(ctx, "far", []byte(`{"vector":[100]}`))

	results, err := c.Search(ctx, SearchOptions{Query: []float64{0}, Limit: 10})
	AssertNil(err)
	AssertEqual(results[0].ID, "near")
}

func TestSearch_RespectsThreshold(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, Options{Dimension: 1, Metric: Euclidean})

	c.Put(ctx, "near", []byte(`{"vector":[1]}`))
	c.Put(ctx, "far", []byte(`{"vector":[100]}`))

	threshold := 10.0
	results, err := c.Search(ctx, SearchOptions{Query: []float64{0}, Threshold: &threshold})
	AssertNil(err)
	AssertEqual(len(results), 1)
	AssertEqual(results[0].ID, "near")
}

func TestSearch_StripsVectorUnlessIncluded(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, Options{Dimension: 1, Metric: Euclidean})
	c.Put(ctx, "v1", []byte(`{"vector":[1]}`))

	results, err := c.Search(ctx, SearchOptions{Query: []float64{0}})
	AssertNil(err)
	_, err = extractVector(results[0].Data)
	AssertNotNil(err)

	results, err = c.Search(ctx, SearchOptions{Query: []float64{0}, IncludeVector: true})
	AssertNil(err)
	_, err = extractVector(results[0].Data)
	AssertNil(err)
}
