package vector

import (
	"context"
	"math"
	"sort"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/pkg/errors"

	"github.com/coldbase/coldbase/collection"
)

// provider mirrors weaviate's distancer.Provider shape (SingleDist over two
// vectors) without its SIMD/ASM specializations, which are out of scope at
// this design's brute-force, sub-10^5-vector scale.
type provider interface {
	singleDist(a, b []float64) (float64, error)
	// higherIsBetter reports the sort/threshold direction: true for
	// similarity scores (cosine, dot), false for distances (euclidean).
	higherIsBetter() bool
}

type cosineProvider struct{}

func (cosineProvider) higherIsBetter() bool { return true }
func (cosineProvider) singleDist(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New("vector: dimension mismatch")
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot, nil
}

type dotProductProvider struct{ cosineProvider }

type euclideanProvider struct{}

func (euclideanProvider) higherIsBetter() bool { return false }
func (euclideanProvider) singleDist(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New("vector: dimension mismatch")
	}
	var sumSq float64
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq), nil
}

func providerFor(metric Metric) provider {
	switch metric {
	case Cosine:
		return cosineProvider{}
	case DotProduct:
		return dotProductProvider{}
	case Euclidean:
		return euclideanProvider{}
	default:
		return cosineProvider{}
	}
}

// SearchOptions parameterizes Search.
type SearchOptions struct {
	Query         []float64
	Limit         int
	Threshold     *float64
	Where         map[string]any
	Predicate     func(id string, data []byte) bool
	IncludeVector bool
	At            *int64
}

// Result is one scored match.
type Result struct {
	ID    string
	Score float64
	Data  []byte
}

// Search validates and optionally normalizes the query vector, then scans
// every live, non-expired, filter-matching record, scores it against the
// query with the collection's configured metric, and returns the top
// Limit results ordered by score (descending for cosine/dot, ascending for
// euclidean), per spec §4.8.
func (c *Collection) Search(ctx context.Context, opts SearchOptions) ([]Result, error) {
	if len(opts.Query) != c.opts.Dimension {
		return nil, &VectorDimensionError{Got: len(opts.Query), Want: c.opts.Dimension}
	}
	for _, f := range opts.Query {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &InvalidVectorError{Reason: "query vector has a non-finite element"}
		}
	}

	query := append([]float64{}, opts.Query...)
	if c.opts.normalize() {
		normalize(query)
	}

	found, err := c.Collection.Find(ctx, collection.FindOptions{
		Where:     opts.Where,
		Predicate: opts.Predicate,
		At:        opts.At,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vector: scan")
	}

	prov := providerFor(c.opts.Metric)

	results := make([]Result, 0, len(found))
	for _, rec := range found {
		vec, decodeErr := extractVector(rec.Data)
		if decodeErr != nil {
			continue
		}
		score, distErr := prov.singleDist(query, vec)
		if distErr != nil {
			continue
		}
		if opts.Threshold != nil {
			if prov.higherIsBetter() && score < *opts.Threshold {
				continue
			}
			if !prov.higherIsBetter() && score > *opts.Threshold {
				continue
			}
		}

		data := rec.Data
		if !opts.IncludeVector {
			data = stripVector(data)
		}
		results = append(results, Result{ID: rec.ID, Score: score, Data: data})
	}

	sort.Slice(results, func(i, j int) bool {
		if prov.higherIsBetter() {
			return results[i].Score > results[j].Score
		}
		return results[i].Score < results[j].Score
	})

	if opts.Limit > 0 && opts.Limit < len(results) {
		results = results[:opts.Limit]
	}
	return results, nil
}

func extractVector(data []byte) ([]float64, error) {
	var obj struct {
		Vector []float64 `json:"vector"`
	}
	if err := jsonv2.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj.Vector == nil {
		return nil, errors.New("vector: record has no vector field")
	}
	return obj.Vector, nil
}

func stripVector(data []byte) []byte {
	var obj map[string]any
	if err := jsonv2.Unmarshal(data, &obj); err != nil {
		return data
	}
	delete(obj, "vector")
	stripped, err := jsonv2.Marshal(obj)
	if err != nil {
		return data
	}
	return stripped
}
