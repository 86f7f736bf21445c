package collection

import (
	"context"
	"io"
	"iter"
	"sort"
	"strconv"
	"strings"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/compactor"
	"github.com/coldbase/coldbase/streamutil"
)

const (
	mutationFetchChunk  = 50
	mutationFetchFanOut = 10
)

// Read yields every visible record — snapshot lines then pending mutations
// — in the order described by spec §4.6. It is a finite, non-restartable
// lazy sequence: each call re-lists storage and starts a fresh scan. If at
// is non-nil, records/mutations timestamped after it are skipped (a
// time-travel bound), used internally by index/bloom-bypassing scans.
func (c *Collection) Read(ctx context.Context, at *int64) iter.Seq[streamutil.Record] {
	return func(yield func(streamutil.Record) bool) {
		// Snapshot the pending mutation keys before touching the
		// snapshot, so a concurrent compaction deleting a mutation blob
		// mid-scan cannot cause us to miss or duplicate a record.
		keys, err := listAllMutations(ctx, c.store, c.name)
		if err != nil {
			c.opts.Logger.Warnf("collection: list mutations for %s: %v", c.name, err)
			return
		}
		sort.Strings(keys)

		if !c.streamSnapshot(ctx, yield) {
			return
		}

		if !c.streamMutations(ctx, keys, at, yield) {
			return
		}
	}
}

func (c *Collection) streamSnapshot(ctx context.Context, yield func(streamutil.Record) bool) bool {
	r, _, err := c.store.Get(ctx, snapshotKey(c.name))
	if err == blobstore.ErrNotFound {
		return true
	}
	if err != nil {
		c.opts.Logger.Warnf("collection: read snapshot for %s: %v", c.name, err)
		return true
	}
	defer r.Close()

	cont := true
	walkErr := streamutil.EachLine(r, func(line streamutil.Line) error {
		rec, decodeErr := streamutil.DecodeRecord(line.Bytes)
		if decodeErr != nil {
			c.opts.Logger.Warnf("collection: skip malformed snapshot line in %s: %v", c.name, decodeErr)
			return nil
		}
		if !yield(rec) {
			cont = false
			return errStopIteration
		}
		return nil
	})
	if walkErr != nil && walkErr != errStopIteration {
		c.opts.Logger.Warnf("collection: stream snapshot for %s: %v", c.name, walkErr)
	}
	return cont
}

var errStopIteration = stopIteration{}

type stopIteration struct{}

func (stopIteration) Error() string { return "collection: iteration stopped" }

func (c *Collection) streamMutations(ctx context.Context, keys []string, at *int64, yield func(streamutil.Record) bool) bool {
	for start := 0; start < len(keys); start += mutationFetchChunk {
		end := start + mutationFetchChunk
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		bodies := streamutil.FanOut(chunk, mutationFetchFanOut, func(key string) []byte {
			if at != nil {
				if ts, ok := mutationKeyTimestamp(c.name, key); ok && ts > *at {
					return nil
				}
			}
			r, _, err := c.store.Get(ctx, key)
			if err != nil {
				if err != blobstore.ErrNotFound {
					c.opts.Logger.Warnf("collection: fetch mutation %s: %v", key, err)
				}
				return nil
			}
			defer r.Close()
			body, readErr := io.ReadAll(r)
			if readErr != nil {
				c.opts.Logger.Warnf("collection: read mutation %s: %v", key, readErr)
				return nil
			}
			return body
		})

		for i, body := range bodies {
			if len(body) == 0 {
				continue
			}
			records, decodeErr := streamutil.DecodeMutationBatch(body)
			if decodeErr != nil {
				c.opts.Logger.Warnf("collection: skip malformed mutation %s: %v", chunk[i], decodeErr)
				continue
			}
			for _, rec := range records {
				if at != nil && rec.Ts > *at {
					continue
				}
				if !yield(rec) {
					return false
				}
			}
		}
	}
	return true
}

func listAllMutations(ctx context.Context, store blobstore.Store, name string) ([]string, error) {
	var keys []string
	cursor := ""
	for {
		result, err := store.List(ctx, mutationPrefix(name), cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, result.Keys...)
		if result.NextCursor == "" {
			return keys, nil
		}
		cursor = result.NextCursor
	}
}

// mutationKeyTimestamp parses the ts embedded in a "<name>.mutation.<ts>-<uuid>" key.
func mutationKeyTimestamp(name, key string) (int64, bool) {
	rest := strings.TrimPrefix(key, mutationPrefix(name))
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(rest[:dash], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// latestByID drains it into a map keyed by id, keeping only the record
// with the largest ts per id — the dedupe-to-latest step every multi-record
// read path (getMany, find, count, vector search) shares (spec §4.6).
func latestByID(it iter.Seq[streamutil.Record]) map[string]streamutil.Record {
	latest := map[string]streamutil.Record{}
	for rec := range it {
		if existing, ok := latest[rec.ID]; !ok || rec.Ts >= existing.Ts {
			latest[rec.ID] = rec
		}
	}
	return latest
}

// isExpired reports whether data carries a ttlField value in the past.
func isExpired(data []byte, ttlField string, now int64) bool {
	if ttlField == "" || data == nil {
		return false
	}
	var obj map[string]any
	if err := jsonUnmarshalLoose(data, &obj); err != nil {
		return false
	}
	raw, ok := obj[ttlField]
	if !ok {
		return false
	}
	deadline, ok := raw.(float64)
	if !ok {
		return false
	}
	return int64(deadline) < now
}

// Get performs a point lookup with the bloom/index fast paths from spec
// §4.6, falling back to a full scan when neither is available or the id
// doesn't resolve cleanly. at enables time-travel and always forces the
// full-scan path.
func (c *Collection) Get(ctx context.Context, id string, at *int64) (streamutil.Record, bool, error) {
	if at == nil {
		if c.opts.UseBloom {
			if bloom := c.loadedBloom(ctx); bloom != nil && !bloom.MightContain(id) {
				return streamutil.Record{}, false, nil
			}
		}
		if c.opts.UseIndex {
			if rec, ok, fast := c.getFromIndex(ctx, id); fast {
				return rec, ok, nil
			}
		}
	}

	latest := latestByID(c.Read(ctx, at))
	rec, ok := latest[id]
	if !ok || rec.IsTombstone() {
		return streamutil.Record{}, false, nil
	}
	if isExpired(rec.Data, c.opts.TTLField, nowMillis()) {
		return streamutil.Record{}, false, nil
	}
	return rec, true, nil
}

// getFromIndex attempts the byte-offset fast path. The bool "fast" return
// tells the caller whether the fast path applied at all (index loadable,
// zero pending mutations); when it's false the caller must fall through to
// a full scan.
func (c *Collection) getFromIndex(ctx context.Context, id string) (streamutil.Record, bool, bool) {
	index, _, ok := c.loadIndexAndBloomIfCurrent(ctx)
	if !ok {
		return streamutil.Record{}, false, false
	}

	entry, exists := index[id]
	if !exists {
		return streamutil.Record{}, false, true
	}

	r, _, err := c.store.Get(ctx, snapshotKey(c.name))
	if err != nil {
		return streamutil.Record{}, false, false
	}
	defer r.Close()

	span, err := readSpan(r, entry.Offset, entry.Length)
	if err != nil {
		return streamutil.Record{}, false, false
	}

	rec, decodeErr := streamutil.DecodeRecord(span)
	if decodeErr != nil {
		return streamutil.Record{}, false, false
	}
	if rec.IsTombstone() {
		return streamutil.Record{}, false, true
	}
	if isExpired(rec.Data, c.opts.TTLField, nowMillis()) {
		return streamutil.Record{}, false, true
	}
	return rec, true, true
}

// loadIndexAndBloomIfCurrent loads/caches C.idx and C.bloom, but only
// reports them usable (I6) when the collection currently has zero pending
// mutation blobs.
func (c *Collection) loadIndexAndBloomIfCurrent(ctx context.Context) (compactor.Index, *streamutil.Bloom, bool) {
	c.mu.Lock()
	if c.cacheLoaded {
		index, bloom := c.cachedIndex, c.cachedBloom
		c.mu.Unlock()
		return index, bloom, index != nil
	}
	c.mu.Unlock()

	keys, err := listAllMutations(ctx, c.store, c.name)
	if err != nil || len(keys) > 0 {
		return nil, nil, false
	}

	index, err := compactor.LoadIndex(ctx, c.store, c.name)
	if err != nil {
		return nil, nil, false
	}
	bloom, _ := compactor.LoadBloom(ctx, c.store, c.name)

	c.mu.Lock()
	c.cachedIndex = index
	c.cachedBloom = bloom
	c.cacheLoaded = true
	c.mu.Unlock()

	return index, bloom, true
}

func (c *Collection) loadedBloom(ctx context.Context) *streamutil.Bloom {
	_, bloom, ok := c.loadIndexAndBloomIfCurrent(ctx)
	if !ok {
		return nil
	}
	return bloom
}

// GetMany does one Read pass, filtering against the requested id set, per
// spec §4.6.
func (c *Collection) GetMany(ctx context.Context, ids []string) (map[string]streamutil.Record, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}

	out := map[string]streamutil.Record{}
	latest := latestByID(c.Read(ctx, nil))
	now := nowMillis()
	for id, rec := range latest {
		if !want[id] || rec.IsTombstone() {
			continue
		}
		if isExpired(rec.Data, c.opts.TTLField, now) {
			continue
		}
		out[id] = rec
	}
	return out, nil
}

// FindOptions parameterizes Find/Count.
type FindOptions struct {
	Where     map[string]any
	Predicate func(id string, data []byte) bool
	Limit     int
	Offset    int
	At        *int64
}

// Find builds the latest-per-id map from Read(at), filters, skips, and
// truncates per spec §4.6.
func (c *Collection) Find(ctx context.Context, opts FindOptions) ([]streamutil.Record, error) {
	latest := latestByID(c.Read(ctx, opts.At))
	now := nowMillis()

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	matched := make([]streamutil.Record, 0, len(latest))
	for _, id := range ids {
		rec := latest[id]
		if rec.IsTombstone() {
			continue
		}
		if isExpired(rec.Data, c.opts.TTLField, now) {
			continue
		}
		if opts.Predicate != nil {
			if !opts.Predicate(id, rec.Data) {
				continue
			}
		} else if len(opts.Where) > 0 {
			ok, err := matchWhere(opts.Where, rec.Data)
			if err != nil || !ok {
				continue
			}
		}
		matched = append(matched, rec)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Count is Find without a predicate, returning only the size.
func (c *Collection) Count(ctx context.Context, at *int64) (int, error) {
	records, err := c.Find(ctx, FindOptions{At: at})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// DeleteExpired writes a tombstone for every currently TTL-expired id.
// Physical removal still requires a later vacuum.
func (c *Collection) DeleteExpired(ctx context.Context) (int, error) {
	if c.opts.TTLField == "" {
		return 0, nil
	}

	now := nowMillis()
	latest := latestByID(c.Read(ctx, nil))

	var writes []pendingWrite
	for id, rec := range latest {
		if rec.IsTombstone() {
			continue
		}
		if isExpired(rec.Data, c.opts.TTLField, now) {
			writes = append(writes, pendingWrite{id: id, data: nil})
		}
	}
	if len(writes) == 0 {
		return 0, nil
	}
	if err := c.writeMutations(ctx, writes); err != nil {
		return 0, err
	}
	return len(writes), nil
}
