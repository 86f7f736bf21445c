package compactor

import (
	"context"
	"fmt"
	"time"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/lock"
	"github.com/coldbase/coldbase/streamutil"
)

// VacuumOptions tunes Vacuum. CacheSize bounds the LRU that tracks each
// id's last-seen line number across the two streaming passes (spec §4.3).
type VacuumOptions struct {
	Common
	CacheSize int
}

// VacuumResult reports what one Vacuum call did.
type VacuumResult struct {
	RecordsRemoved int
	DurationMs     int64
}

type lruEntry struct {
	lineNum int64
	deleted bool
}

// Vacuum removes duplicate and tombstoned records from the snapshot,
// leaving at most one line per live id, using the bounded-LRU-plus-overflow
// two-pass algorithm from spec §4.3. It runs under a lease sized at twice
// the compaction estimate, since it streams the snapshot twice.
func Vacuum(ctx context.Context, store blobstore.Store, manager *lock.Manager, collection, sessionID string, opts VacuumOptions) (result VacuumResult, err error) {
	opts.fillDefaults()
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultVacuumCacheSize
	}
	start := time.Now()

	fileSize, sizeErr := store.Size(ctx, snapshotKey(collection))
	if sizeErr != nil {
		if sizeErr == blobstore.ErrNotFound {
			return VacuumResult{}, nil
		}
		return VacuumResult{}, fmt.Errorf("compactor: stat snapshot: %w", sizeErr)
	}

	base := leaseOptionsFor(opts.Lease, fileSize, 0)
	base.Duration *= 2
	base.PerByte *= 2
	base.PerMutation *= 2

	lease, err := manager.Acquire(ctx, collection, sessionID, base)
	if err != nil {
		return VacuumResult{}, err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			opts.Logger.Warnf("compactor: release lease for %s: %v", collection, releaseErr)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compactor: panic during vacuum %s: %v", collection, r)
		}
	}()

	overflow := map[string]struct{}{}
	cache, lruErr := streamutil.NewLRU[string, lruEntry](opts.CacheSize, func(id string, _ lruEntry) {
		overflow[id] = struct{}{}
	})
	if lruErr != nil {
		return VacuumResult{}, fmt.Errorf("compactor: build vacuum cache: %w", lruErr)
	}

	totalLines, pass1Err := vacuumPass1(ctx, store, collection, cache)
	if pass1Err != nil {
		return VacuumResult{}, pass1Err
	}

	keptLines, pass2Err := vacuumPass2(ctx, store, collection, opts, cache, overflow)
	if pass2Err != nil {
		return VacuumResult{}, pass2Err
	}

	if swapErr := swapSnapshot(ctx, store, collection, opts.CopyBufferSize); swapErr != nil {
		return VacuumResult{}, swapErr
	}

	_, _, rebuildErr := RebuildIndexAndBloom(ctx, store, collection, opts.Common)
	if rebuildErr != nil {
		return VacuumResult{}, rebuildErr
	}

	result.RecordsRemoved = totalLines - keptLines
	if result.RecordsRemoved < 0 {
		result.RecordsRemoved = 0
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// vacuumPass1 streams the snapshot once, recording each id's most recent
// line number and tombstone status in cache. Ids the LRU evicts along the
// way land in overflow (added by the eviction callback wired at Vacuum's
// call site).
func vacuumPass1(ctx context.Context, store blobstore.Store, collection string, cache *streamutil.LRU[string, lruEntry]) (int, error) {
	r, _, err := store.Get(ctx, snapshotKey(collection))
	if err != nil {
		if err == blobstore.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("compactor: read snapshot: %w", err)
	}
	defer r.Close()

	var lineNum int64
	walkErr := streamutil.EachLine(r, func(line streamutil.Line) error {
		defer func() { lineNum++ }()
		rec, decodeErr := streamutil.DecodeRecord(line.Bytes)
		if decodeErr != nil {
			return nil
		}
		cache.Add(rec.ID, lruEntry{lineNum: lineNum, deleted: rec.IsTombstone()})
		return nil
	})
	if walkErr != nil {
		return 0, fmt.Errorf("compactor: vacuum pass1: %w", walkErr)
	}
	return int(lineNum), nil
}

// vacuumPass2 streams the snapshot again, keeping only the line that pass1
// determined is each id's winner, and writes survivors to the tmp
// snapshot key through the same buffered-append path compaction uses.
func vacuumPass2(ctx context.Context, store blobstore.Store, collection string, opts VacuumOptions, cache *streamutil.LRU[string, lruEntry], overflow map[string]struct{}) (int, error) {
	r, _, err := store.Get(ctx, snapshotKey(collection))
	if err != nil {
		if err == blobstore.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("compactor: read snapshot: %w", err)
	}
	defer r.Close()

	appender := newBufferedAppender(ctx, store, tmpSnapshotKey(collection), opts.CopyBufferSize)

	var lineNum int64
	var kept int
	walkErr := streamutil.EachLine(r, func(line streamutil.Line) error {
		defer func() { lineNum++ }()
		rec, decodeErr := streamutil.DecodeRecord(line.Bytes)
		if decodeErr != nil {
			return nil
		}

		keep := false
		if _, isOverflow := overflow[rec.ID]; isOverflow {
			keep = !rec.IsTombstone()
		} else if e, ok := cache.Get(rec.ID); ok {
			keep = e.lineNum == lineNum && !e.deleted
		}

		if !keep {
			return nil
		}
		kept++
		return appender.WriteLine(line.Bytes)
	})
	if walkErr != nil {
		return 0, fmt.Errorf("compactor: vacuum pass2: %w", walkErr)
	}
	if flushErr := appender.Flush(); flushErr != nil {
		return 0, flushErr
	}
	return kept, nil
}

// swapSnapshot truncates the live snapshot and streams the tmp snapshot
// back into it, then removes the tmp key.
func swapSnapshot(ctx context.Context, store blobstore.Store, collection string, copyBufferSize int) error {
	if _, err := store.Put(ctx, snapshotKey(collection), []byte{}); err != nil {
		return fmt.Errorf("compactor: truncate snapshot: %w", err)
	}

	r, _, err := store.Get(ctx, tmpSnapshotKey(collection))
	if err != nil {
		if err == blobstore.ErrNotFound {
			return nil
		}
		return fmt.Errorf("compactor: read tmp snapshot: %w", err)
	}
	defer r.Close()

	appender := newBufferedAppender(ctx, store, snapshotKey(collection), copyBufferSize)
	walkErr := streamutil.EachLine(r, func(line streamutil.Line) error {
		return appender.WriteLine(line.Bytes)
	})
	if walkErr != nil {
		return fmt.Errorf("compactor: swap snapshot: %w", walkErr)
	}
	if flushErr := appender.Flush(); flushErr != nil {
		return flushErr
	}

	return store.Delete(ctx, []string{tmpSnapshotKey(collection)})
}
