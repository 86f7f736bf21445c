// Package vector extends collection with fixed-dimension vector fields and
// brute-force similarity search, scored the way weaviate's distancer
// package structures a metric Provider, without its SIMD specializations —
// out of scope at this design's data scale (spec Non-goals: exact
// nearest-neighbor above ~10^5 vectors).
package vector

import (
	"context"
	"fmt"
	"math"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/pkg/errors"

	"github.com/coldbase/coldbase/collection"
)

// Metric selects the distance/similarity function used by Search.
type Metric string

const (
	Cosine     Metric = "cosine"
	Euclidean  Metric = "euclidean"
	DotProduct Metric = "dotProduct"
)

func (m Metric) valid() bool {
	switch m {
	case Cosine, Euclidean, DotProduct:
		return true
	}
	return false
}

// VectorDimensionError is raised when a record's vector field length does
// not equal the collection's declared dimension.
type VectorDimensionError struct {
	Got, Want int
}

func (e *VectorDimensionError) Error() string {
	return fmt.Sprintf("vector: expected dimension %d, got %d", e.Want, e.Got)
}

// InvalidVectorError is raised when a vector field is missing or contains
// a non-finite element.
type InvalidVectorError struct {
	Reason string
}

func (e *InvalidVectorError) Error() string { return "vector: " + e.Reason }

// Options configures a Collection's vector semantics.
type Options struct {
	Dimension int
	Metric    Metric
	Normalize *bool // nil means "true iff Metric == Cosine"
}

func (o Options) normalize() bool {
	if o.Normalize != nil {
		return *o.Normalize
	}
	return o.Metric == Cosine
}

// Collection wraps a *collection.Collection, validating and optionally
// normalizing vectors on write and offering brute-force Search on read.
type Collection struct {
	*collection.Collection
	opts Options
}

// New validates opts and wraps col.
func New(col *collection.Collection, opts Options) (*Collection, error) {
	if opts.Dimension <= 0 {
		return nil, errors.New("vector: dimension must be positive")
	}
	if !opts.Metric.valid() {
		return nil, errors.Errorf("vector: unknown metric %q", opts.Metric)
	}
	return &Collection{Collection: col, opts: opts}, nil
}

// Put validates the record's vector field against the declared dimension,
// L2-normalizes it in place when configured, and re-encodes before
// delegating to the wrapped collection's write path.
func (c *Collection) Put(ctx context.Context, id string, data []byte) error {
	encoded, err := c.prepare(data)
	if err != nil {
		return err
	}
	return c.Collection.Put(ctx, id, encoded)
}

func (c *Collection) prepare(data []byte) ([]byte, error) {
	var obj map[string]any
	if err := jsonv2.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrap(err, "vector: decode record")
	}

	raw, ok := obj["vector"]
	if !ok {
		return nil, &InvalidVectorError{Reason: "missing vector field"}
	}
	rawSlice, ok := raw.([]any)
	if !ok {
		return nil, &InvalidVectorError{Reason: "vector field is not an array"}
	}
	if len(rawSlice) != c.opts.Dimension {
		return nil, &VectorDimensionError{Got: len(rawSlice), Want: c.opts.Dimension}
	}

	vec := make([]float64, len(rawSlice))
	for i, v := range rawSlice {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &InvalidVectorError{Reason: fmt.Sprintf("element %d is not a finite number", i)}
		}
		vec[i] = f
	}

	if c.opts.normalize() {
		normalize(vec)
	}

	obj["vector"] = vec
	return jsonv2.Marshal(obj)
}

func normalize(v []float64) {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
