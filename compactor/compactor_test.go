package compactor

import (
	"context"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
	"github.com/coldbase/coldbase/lock"
	"github.com/coldbase/coldbase/streamutil"
)

func putMutation(t *testing.T, store *memblob.Store, collection string, key string, records []streamutil.Record) {
	body, err := streamutil.EncodeMutationBatch(records)
	AssertNil(err)
	_, err = store.Put(context.Background(), collection+".mutation."+key, body)
	AssertNil(err)
}

func TestCompact_MergesMutationsIntoSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	manager := lock.NewManager(store)

	putMutation(t, store, "orders", "1-a", []streamutil.Record{
		{ID: "o1", Data: []byte(`{"total":10}`), Ts: 1},
		{ID: "o2", Data: []byte(`{"total":20}`), Ts: 2},
	})

	result, err := Compact(ctx, store, manager, "orders", "session-1", CompactOptions{})
	AssertNil(err)
	AssertEqual(result.MutationsProcessed, 2)
	AssertEqual(result.IndexBuilt, true)
	AssertEqual(result.BloomBuilt, true)

	keys, err := listAll(ctx, store, "orders.mutation.")
	AssertNil(err)
	AssertEqual(len(keys), 0)

	index, err := LoadIndex(ctx, store, "orders")
	AssertNil(err)
	AssertEqual(len(index), 2)
}

func TestCompact_SkipsMalformedMutation(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	manager := lock.NewManager(store)

	store.Put(ctx, "orders.mutation.1-bad", []byte("not json"))

	result, err := Compact(ctx, store, manager, "orders", "session-1", CompactOptions{})
	AssertNil(err)
	AssertEqual(result.MutationsProcessed, 0)

	keys, err := listAll(ctx, store, "orders.mutation.")
	AssertNil(err)
	AssertEqual(len(keys), 0) // malformed blob still gets deleted
}

func TestVacuum_RemovesDuplicatesAndTombstones(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	manager := lock.NewManager(store)

	putMutation(t, store, "orders", "1-a", []streamutil.Record{
		{ID: "o1", Data: []byte(`{"v":1}`), Ts: 1},
	})
	_, err := Compact(ctx, store, manager, "orders", "s1", CompactOptions{})
	AssertNil(err)

	putMutation(t, store, "orders", "2-b", []streamutil.Record{
		{ID: "o1", Data: []byte(`{"v":2}`), Ts: 2},
		{ID: "o2", Data: nil, Ts: 3},
	})
	_, err = Compact(ctx, store, manager, "orders", "s1", CompactOptions{})
	AssertNil(err)

	vacuumResult, err := Vacuum(ctx, store, manager, "orders", "s1", VacuumOptions{})
	AssertNil(err)
	AssertTrue(vacuumResult.RecordsRemoved >= 1)

	index, err := LoadIndex(ctx, store, "orders")
	AssertNil(err)
	AssertEqual(len(index), 1) // only o1 survives; o2 was a tombstone
	_, hasO1 := index["o1"]
	AssertEqual(hasO1, true)
}

func TestVacuum_OnEmptyCollectionIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	manager := lock.NewManager(store)

	result, err := Vacuum(ctx, store, manager, "empty", "s1", VacuumOptions{})
	AssertNil(err)
	AssertEqual(result.RecordsRemoved, 0)
}

func TestCompact_ThenVacuum_ReleasesLockBetween(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	manager := lock.NewManager(store)

	putMutation(t, store, "orders", "1-a", []streamutil.Record{{ID: "o1", Data: []byte("1"), Ts: 1}})
	_, err := Compact(ctx, store, manager, "orders", "s1", CompactOptions{})
	AssertNil(err)

	// A second session must be able to acquire the lock now that Compact
	// released it, proving the lease was not leaked across the call.
	_, err = Vacuum(ctx, store, manager, "orders", "s2", VacuumOptions{})
	AssertNil(err)
}
