// Package collection implements the read/write engine on top of a single
// blobstore.Store: writes land as immutable mutation blobs, compaction and
// vacuum (package compactor) fold and dedupe them, and reads merge the
// compacted snapshot with whatever mutations are still pending.
package collection

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/compactor"
	"github.com/coldbase/coldbase/lock"
	"github.com/coldbase/coldbase/streamutil"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidationError signals a request that was rejected before touching
// storage: a bad collection name, an oversized batch, a malformed filter.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "collection: " + e.Msg }

// SizeLimitError is returned when an encoded mutation batch exceeds
// MaxMutationSize.
type SizeLimitError struct {
	Size int
	Max  int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("collection: mutation size %d exceeds limit %d", e.Size, e.Max)
}

const defaultMaxMutationSize = 10 * 1024 * 1024

// ValidateName checks a collection name against spec's naming rule, so the
// caller can reject bad names before ever touching storage.
func ValidateName(name string) error {
	if len(name) < 1 || len(name) > 64 || !nameRe.MatchString(name) {
		return &ValidationError{Msg: fmt.Sprintf("invalid collection name %q", name)}
	}
	return nil
}

func snapshotKey(name string) string         { return name + ".jsonl" }
func mutationPrefix(name string) string      { return name + ".mutation." }
func mutationKey(name, ts, id string) string { return mutationPrefix(name) + ts + "-" + id }

// Collection is the read/write engine bound to one blob-store-backed
// collection. It holds no data itself beyond in-memory caches invalidated
// on every local write; every read goes back to storage.
type Collection struct {
	store     blobstore.Store
	name      string
	clock     *streamutil.MonotonicClock
	lock      *lock.Manager
	opts      Options
	sessionID string

	mu          sync.Mutex
	cachedIndex compactor.Index
	cachedBloom *streamutil.Bloom
	cacheLoaded bool
}

// Options configures a Collection. Zero value is usable; defaults are
// filled in by New.
type Options struct {
	MaxMutationSize int
	TTLField        string

	UseIndex bool
	UseBloom bool

	AutoCompact Trigger
	AutoVacuum  Trigger

	Compact compactor.CompactOptions
	Vacuum  compactor.VacuumOptions
	Lease   lock.Options
	Retry   blobstore.RetryOptions

	Logger streamutil.Logger

	OnWrite              func(collection string, count int)
	OnMaintenanceFailure func(collection, op string, err error, attempts int)
}

func (o *Options) fillDefaults() {
	if o.MaxMutationSize <= 0 {
		o.MaxMutationSize = defaultMaxMutationSize
	}
	if o.Logger == nil {
		o.Logger = streamutil.NopLogger
	}
	// Compact and Vacuum acquire their maintenance lease with these knobs;
	// without this, Common.Lease is always the zero value and every lease
	// is born already-expired, letting a second maintenance pass take it
	// over immediately.
	o.Compact.Common.Lease = o.Lease
	o.Vacuum.Common.Lease = o.Lease
}

// New opens a Collection backed by store. It performs no I/O: blobs are
// created lazily by the first write. Every operation against store,
// including the ones compactor and lock issue on this Collection's
// behalf, retries transient errors per opts.Retry (spec §4.5/§7).
func New(store blobstore.Store, name string, opts Options) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	opts.fillDefaults()
	store = blobstore.WithRetry(store, opts.Retry)

	return &Collection{
		store:     store,
		name:      name,
		clock:     streamutil.NewMonotonicClock(),
		lock:      lock.NewManager(store),
		opts:      opts,
		sessionID: uuid.NewString(),
	}, nil
}

func (c *Collection) Name() string { return c.name }

// invalidateCache drops the in-memory index/bloom, which is only ever
// valid immediately after a load with zero pending mutations (spec I6).
func (c *Collection) invalidateCache() {
	c.mu.Lock()
	c.cachedIndex = nil
	c.cachedBloom = nil
	c.cacheLoaded = false
	c.mu.Unlock()
}

// Put writes or overwrites the record with the given id.
func (c *Collection) Put(ctx context.Context, id string, data []byte) error {
	return c.writeMutations(ctx, []pendingWrite{{id: id, data: data}})
}

// Delete tombstones id. A subsequent Get returns not-found until a Put
// resurrects it.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.writeMutations(ctx, []pendingWrite{{id: id, data: nil}})
}

// BatchWrite is one write in a Batch call.
type BatchWrite struct {
	ID   string
	Data []byte // nil deletes
}

// Batch writes every item as a single mutation blob: the whole batch
// either becomes one blob or fails, per spec §4.5's atomicity guarantee
// (within this collection only — no cross-collection atomicity).
func (c *Collection) Batch(ctx context.Context, items []BatchWrite) error {
	writes := make([]pendingWrite, len(items))
	for i, item := range items {
		writes[i] = pendingWrite{id: item.ID, data: item.Data}
	}
	return c.writeMutations(ctx, writes)
}

type pendingWrite struct {
	id   string
	data []byte
}

// writeMutations implements spec §4.5: one shared timestamp for the whole
// batch, size-checked before any storage call, written as one immutable
// mutation blob, followed by cache invalidation and a fire-and-forget
// maintenance dispatch.
func (c *Collection) writeMutations(ctx context.Context, items []pendingWrite) error {
	if len(items) == 0 {
		return nil
	}

	ts := c.clock.NextMillis()
	records := make([]streamutil.Record, len(items))
	for i, item := range items {
		if item.id == "" {
			return &ValidationError{Msg: "empty record id"}
		}
		records[i] = streamutil.Record{ID: item.id, Data: item.data, Ts: ts}
	}

	body, err := streamutil.EncodeMutationBatch(records)
	if err != nil {
		return fmt.Errorf("collection: encode mutation: %w", err)
	}
	if len(body) > c.opts.MaxMutationSize {
		return &SizeLimitError{Size: len(body), Max: c.opts.MaxMutationSize}
	}

	key := mutationKey(c.name, formatTs(ts), uuid.NewString())
	if _, err := c.store.Put(ctx, key, body); err != nil {
		return fmt.Errorf("collection: write mutation: %w", err)
	}

	c.invalidateCache()

	if c.opts.OnWrite != nil {
		c.opts.OnWrite(c.name, len(items))
	}

	c.scheduleMaintenance(ctx)

	return nil
}

func formatTs(ts int64) string {
	return fmt.Sprintf("%d", ts)
}
