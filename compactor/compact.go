package compactor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/lock"
	"github.com/coldbase/coldbase/streamutil"
)

// CompactOptions tunes Compact. Embeds Common for the knobs shared with
// Vacuum.
type CompactOptions struct {
	Common
}

// CompactResult reports what one Compact call did, per spec §4.2's
// contract shape.
type CompactResult struct {
	MutationsProcessed int
	DurationMs         int64
	IndexBuilt         bool
	BloomBuilt         bool
}

// Compact merges every currently visible mutation blob into the snapshot
// and deletes them, then rebuilds the index and bloom filter. It runs
// under a lease acquired from manager, released on every exit path.
func Compact(ctx context.Context, store blobstore.Store, manager *lock.Manager, collection, sessionID string, opts CompactOptions) (result CompactResult, err error) {
	opts.fillDefaults()
	start := time.Now()

	fileSize, _ := store.Size(ctx, snapshotKey(collection))
	pendingBefore, err := listAll(ctx, store, mutationPrefix(collection))
	if err != nil {
		return CompactResult{}, err
	}

	lease, err := manager.Acquire(ctx, collection, sessionID, leaseOptionsFor(opts.Lease, fileSize, int64(len(pendingBefore))))
	if err != nil {
		return CompactResult{}, err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			opts.Logger.Warnf("compactor: release lease for %s: %v", collection, releaseErr)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compactor: panic during compact %s: %v", collection, r)
		}
	}()

	appender := newBufferedAppender(ctx, store, snapshotKey(collection), opts.CopyBufferSize)

	for {
		keys, listErr := listAll(ctx, store, mutationPrefix(collection))
		if listErr != nil {
			return CompactResult{}, listErr
		}
		if len(keys) == 0 {
			break
		}
		keys = orderMutationKeys(mutationPrefix(collection), keys)

		bodies, fetchErr := streamutil.FanOutErr(keys, opts.Parallelism, func(key string) ([]byte, error) {
			r, _, getErr := store.Get(ctx, key)
			if getErr != nil {
				if getErr == blobstore.ErrNotFound {
					return nil, nil
				}
				return nil, getErr
			}
			defer r.Close()
			return io.ReadAll(r)
		})
		if fetchErr != nil {
			return CompactResult{}, fmt.Errorf("compactor: fetch mutations: %w", fetchErr)
		}

		for i, body := range bodies {
			records, decodeErr := streamutil.DecodeMutationBatch(body)
			if decodeErr != nil {
				opts.Logger.Warnf("compactor: skip malformed mutation %s: %v", keys[i], decodeErr)
				continue
			}
			for _, rec := range records {
				line, encodeErr := rec.Encode()
				if encodeErr != nil {
					return CompactResult{}, fmt.Errorf("compactor: encode record: %w", encodeErr)
				}
				if appendErr := appender.WriteLine(line); appendErr != nil {
					return CompactResult{}, appendErr
				}
				result.MutationsProcessed++
			}
		}

		if flushErr := appender.Flush(); flushErr != nil {
			return CompactResult{}, flushErr
		}

		if deleteErr := deleteInChunks(ctx, store, keys, opts.DeleteChunkSize); deleteErr != nil {
			return CompactResult{}, deleteErr
		}
	}

	indexBuilt, bloomBuilt, rebuildErr := RebuildIndexAndBloom(ctx, store, collection, opts.Common)
	if rebuildErr != nil {
		return CompactResult{}, rebuildErr
	}
	result.IndexBuilt = indexBuilt
	result.BloomBuilt = bloomBuilt
	result.DurationMs = time.Since(start).Milliseconds()

	return result, nil
}

func leaseOptionsFor(base lock.Options, fileSize, mutationCount int64) lock.Options {
	opts := base
	opts.FileSize = fileSize
	opts.MutationCount = mutationCount
	return opts
}
