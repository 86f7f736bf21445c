package streamutil

import (
	"bytes"
	"encoding/base64"
	"fmt"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/willf/bloom"
)

// Bloom wraps willf/bloom.Filter with the JSON envelope spec §5.2 persists
// alongside the snapshot: a base64 blob of the gob-encoded bit array plus
// the m/k parameters, so a reader can reconstruct the filter without
// recomputing it from the snapshot.
type Bloom struct {
	filter *bloom.BloomFilter
}

// NewBloom sizes a filter for n expected keys at the given false positive
// rate, the way compactor.RebuildIndexAndBloom does after a compaction.
func NewBloom(n uint, falsePositiveRate float64) *Bloom {
	return &Bloom{filter: bloom.NewWithEstimates(n, falsePositiveRate)}
}

func (b *Bloom) Add(id string) {
	b.filter.Add([]byte(id))
}

func (b *Bloom) MightContain(id string) bool {
	return b.filter.Test([]byte(id))
}

// bloomEnvelope is the JSON shape persisted as the collection's C.bloom
// blob.
type bloomEnvelope struct {
	M    uint   `json:"m"`
	K    uint   `json:"k"`
	Bits string `json:"bits"` // base64 of the gob-encoded filter
}

func (b *Bloom) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.filter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("bloom marshal: %w", err)
	}
	env := bloomEnvelope{
		M:    b.filter.Cap(),
		K:    b.filter.K(),
		Bits: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	return jsonv2.Marshal(env)
}

func (b *Bloom) UnmarshalJSON(data []byte) error {
	var env bloomEnvelope
	if err := jsonv2.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("bloom unmarshal: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Bits)
	if err != nil {
		return fmt.Errorf("bloom unmarshal: decode bits: %w", err)
	}

	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("bloom unmarshal: %w", err)
	}
	b.filter = f
	return nil
}
