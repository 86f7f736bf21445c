package compactor

import (
	"context"
	"fmt"
	"io"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/streamutil"
)

// IndexEntry is one byte-offset/length pair into the snapshot, per spec
// §4.4. Length is measured in bytes, the index unit decided in DESIGN.md.
type IndexEntry struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// Index maps a live id to its span inside C.jsonl.
type Index map[string]IndexEntry

// RebuildIndexAndBloom streams the snapshot once, writing C.idx (offsets of
// every record whose last line is not a tombstone) and C.bloom (a fresh bloom
// filter over every id that had a live line) per spec §4.4. It reports whether each was written; both are
// skipped if the snapshot does not exist (an empty collection).
func RebuildIndexAndBloom(ctx context.Context, store blobstore.Store, collection string, common Common) (indexBuilt, bloomBuilt bool, err error) {
	r, _, err := store.Get(ctx, snapshotKey(collection))
	if err != nil {
		if err == blobstore.ErrNotFound {
			return false, false, nil
		}
		return false, false, fmt.Errorf("compactor: read snapshot: %w", err)
	}
	defer r.Close()

	index := Index{}
	bloom := streamutil.NewBloom(common.BloomExpectedItems, common.BloomFalsePositiveRate)

	walkErr := streamutil.EachLine(r, func(line streamutil.Line) error {
		rec, decodeErr := streamutil.DecodeRecord(line.Bytes)
		if decodeErr != nil {
			common.Logger.Warnf("compactor: skip malformed snapshot line at offset %d: %v", line.Offset, decodeErr)
			return nil
		}
		if rec.IsTombstone() {
			delete(index, rec.ID)
			return nil
		}
		index[rec.ID] = IndexEntry{Offset: line.Offset, Length: line.Length}
		bloom.Add(rec.ID)
		return nil
	})
	if walkErr != nil && walkErr != io.EOF {
		return false, false, fmt.Errorf("compactor: rebuild index: %w", walkErr)
	}

	indexBody, err := jsonv2.Marshal(index)
	if err != nil {
		return false, false, fmt.Errorf("compactor: encode index: %w", err)
	}
	if _, err := store.Put(ctx, indexKey(collection), indexBody); err != nil {
		return false, false, fmt.Errorf("compactor: write index: %w", err)
	}

	bloomBody, err := bloom.MarshalJSON()
	if err != nil {
		return false, false, fmt.Errorf("compactor: encode bloom: %w", err)
	}
	if _, err := store.Put(ctx, bloomKey(collection), bloomBody); err != nil {
		return false, false, fmt.Errorf("compactor: write bloom: %w", err)
	}

	return true, true, nil
}

// LoadIndex reads C.idx back, for the collection read path's fast lookup.
func LoadIndex(ctx context.Context, store blobstore.Store, collection string) (Index, error) {
	r, _, err := store.Get(ctx, indexKey(collection))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var index Index
	if err := jsonv2.UnmarshalRead(r, &index); err != nil {
		return nil, fmt.Errorf("compactor: decode index: %w", err)
	}
	return index, nil
}

// LoadBloom reads C.bloom back, for the collection read path's negative
// membership fast-reject.
func LoadBloom(ctx context.Context, store blobstore.Store, collection string) (*streamutil.Bloom, error) {
	r, _, err := store.Get(ctx, bloomKey(collection))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compactor: read bloom: %w", err)
	}

	bloom := &streamutil.Bloom{}
	if err := bloom.UnmarshalJSON(body); err != nil {
		return nil, fmt.Errorf("compactor: decode bloom: %w", err)
	}
	return bloom, nil
}
