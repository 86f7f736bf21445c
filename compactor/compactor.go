// Package compactor implements the two maintenance operations that keep a
// collection's mutation log bounded: Compact folds mutation blobs into the
// merged snapshot, and Vacuum removes duplicate/tombstoned entries from
// that snapshot. Both run under a lock.Lease so only one process performs
// maintenance on a collection at a time.
package compactor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/btree"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/lock"
	"github.com/coldbase/coldbase/streamutil"
)

func snapshotKey(collection string) string    { return collection + ".jsonl" }
func tmpSnapshotKey(collection string) string { return collection + ".jsonl.tmp" }
func mutationPrefix(collection string) string { return collection + ".mutation." }
func indexKey(collection string) string       { return collection + ".idx" }
func bloomKey(collection string) string       { return collection + ".bloom" }

const (
	defaultParallelism     = 5
	defaultCopyBufferSize  = 64 * 1024
	defaultDeleteChunkSize = 100
	defaultVacuumCacheSize = 100000
)

// Common holds the tuning knobs shared by Compact and Vacuum, and the
// bloom-filter sizing used when rebuilding C.bloom at the end of either.
type Common struct {
	Parallelism            int
	CopyBufferSize         int
	DeleteChunkSize        int
	BloomExpectedItems     uint
	BloomFalsePositiveRate float64
	Lease                  lock.Options
	Logger                 streamutil.Logger
}

func (c *Common) fillDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	if c.CopyBufferSize <= 0 {
		c.CopyBufferSize = defaultCopyBufferSize
	}
	if c.DeleteChunkSize <= 0 {
		c.DeleteChunkSize = defaultDeleteChunkSize
	}
	if c.BloomExpectedItems == 0 {
		c.BloomExpectedItems = 100000
	}
	if c.BloomFalsePositiveRate == 0 {
		c.BloomFalsePositiveRate = 0.01
	}
	if c.Logger == nil {
		c.Logger = streamutil.NopLogger
	}
}

// bufferedAppender batches lines in memory and flushes them to the store
// via Append once the buffer crosses a threshold, the way spec §4.2.c
// describes the compaction write path.
type bufferedAppender struct {
	ctx       context.Context
	store     blobstore.Store
	key       string
	threshold int
	buf       bytes.Buffer
}

func newBufferedAppender(ctx context.Context, store blobstore.Store, key string, threshold int) *bufferedAppender {
	return &bufferedAppender{ctx: ctx, store: store, key: key, threshold: threshold}
}

func (a *bufferedAppender) WriteLine(line []byte) error {
	if a.buf.Len() > 0 {
		a.buf.WriteByte('\n')
	}
	a.buf.Write(line)
	if a.buf.Len() >= a.threshold {
		return a.Flush()
	}
	return nil
}

func (a *bufferedAppender) Flush() error {
	if a.buf.Len() == 0 {
		return nil
	}
	body := append([]byte{}, a.buf.Bytes()...)
	a.buf.Reset()
	if err := a.store.Append(a.ctx, a.key, body); err != nil {
		return fmt.Errorf("compactor: append %s: %w", a.key, err)
	}
	return nil
}

// deleteInChunks removes keys in batches of size chunk, so a single
// maintenance pass never issues an unbounded-size delete call.
func deleteInChunks(ctx context.Context, store blobstore.Store, keys []string, chunk int) error {
	for i := 0; i < len(keys); i += chunk {
		end := i + chunk
		if end > len(keys) {
			end = len(keys)
		}
		if err := store.Delete(ctx, keys[i:end]); err != nil {
			return fmt.Errorf("compactor: delete chunk: %w", err)
		}
	}
	return nil
}

// mutationKey is a parsed "<prefix>.mutation.<ts>-<uuid>" key, ordered by
// ts then uuid so a compaction pass processes mutations oldest-first even
// though the store's own listing order is unspecified.
type mutationKey struct {
	raw string
	ts  int64
	id  string
}

func lessMutationKey(a, b mutationKey) bool {
	if a.ts != b.ts {
		return a.ts < b.ts
	}
	return a.id < b.id
}

func parseMutationKey(prefix, key string) mutationKey {
	rest := strings.TrimPrefix(key, prefix)
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return mutationKey{raw: key}
	}
	ts, _ := strconv.ParseInt(rest[:dash], 10, 64)
	return mutationKey{raw: key, ts: ts, id: rest[dash+1:]}
}

// orderMutationKeys sorts keys oldest-first using a btree so a compaction
// pass merges mutations in write order rather than in whatever order the
// underlying store's List happens to return.
func orderMutationKeys(prefix string, keys []string) []string {
	tree := btree.NewG(32, lessMutationKey)
	for _, k := range keys {
		tree.ReplaceOrInsert(parseMutationKey(prefix, k))
	}

	ordered := make([]string, 0, len(keys))
	tree.Ascend(func(item mutationKey) bool {
		ordered = append(ordered, item.raw)
		return true
	})
	return ordered
}

// listAll pages through every key with the given prefix, following
// nextCursor until the store reports none left.
func listAll(ctx context.Context, store blobstore.Store, prefix string) ([]string, error) {
	var keys []string
	cursor := ""
	for {
		result, err := store.List(ctx, prefix, cursor)
		if err != nil {
			return nil, fmt.Errorf("compactor: list %s: %w", prefix, err)
		}
		keys = append(keys, result.Keys...)
		if result.NextCursor == "" {
			return keys, nil
		}
		cursor = result.NextCursor
	}
}
