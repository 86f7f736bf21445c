package blobstore_test

import (
	"context"
	"io"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/blobstore/localfs"
	"github.com/coldbase/coldbase/blobstore/memblob"
)

// stores enumerates the adapters that run without network credentials
// (localfs and memblob), so a bug in either one's append/conditional-write
// semantics is caught against the same contract checks.
func stores(t *testing.T) map[string]blobstore.Store {
	fs, err := localfs.New(t.TempDir())
	AssertNil(err)

	return map[string]blobstore.Store{
		"localfs": fs,
		"memblob": memblob.New(),
	}
}

func TestConformance_PutGet(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(ctx, "a", []byte("hello"))
			AssertNil(err)

			r, _, err := store.Get(ctx, "a")
			AssertNil(err)
			body, _ := io.ReadAll(r)
			r.Close()
			AssertEqual(string(body), "hello")
		})
	}
}

func TestConformance_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.Get(ctx, "missing")
			AssertEqual(err, blobstore.ErrNotFound)
		})
	}
}

func TestConformance_PutIfNoneMatch(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.PutIfNoneMatch(ctx, "lock", []byte("1"))
			AssertNil(err)

			_, err = store.PutIfNoneMatch(ctx, "lock", []byte("2"))
			AssertEqual(blobstore.IsPreconditionFailed(err), true)
		})
	}
}

func TestConformance_PutIfMatch(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			v, err := store.PutIfNoneMatch(ctx, "lock", []byte("1"))
			AssertNil(err)

			_, err = store.PutIfMatch(ctx, "lock", []byte("2"), v)
			AssertNil(err)

			_, err = store.PutIfMatch(ctx, "lock", []byte("3"), v)
			AssertEqual(blobstore.IsPreconditionFailed(err), true)

			_, err = store.PutIfMatch(ctx, "missing-key", []byte("x"), "whatever")
			AssertEqual(blobstore.IsPreconditionFailed(err), true)
		})
	}
}

func TestConformance_Append(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			AssertNil(store.Append(ctx, "log", []byte("first")))
			AssertNil(store.Append(ctx, "log", []byte("second")))

			r, _, err := store.Get(ctx, "log")
			AssertNil(err)
			body, _ := io.ReadAll(r)
			r.Close()
			AssertEqual(string(body), "first\nsecond")
		})
	}
}

func TestConformance_AppendToEmptyKeyHasNoLeadingNewline(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(ctx, "log", []byte(""))
			AssertNil(err)

			AssertNil(store.Append(ctx, "log", []byte("first")))

			r, _, err := store.Get(ctx, "log")
			AssertNil(err)
			body, _ := io.ReadAll(r)
			r.Close()
			AssertEqual(string(body), "first")
		})
	}
}

func TestConformance_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Put(ctx, "orders.mutation.1-a", []byte("[]"))
			store.Put(ctx, "orders.mutation.2-b", []byte("[]"))
			store.Put(ctx, "other.jsonl", []byte(""))

			result, err := store.List(ctx, "orders.mutation.", "")
			AssertNil(err)
			AssertEqual(len(result.Keys), 2)

			AssertNil(store.Delete(ctx, result.Keys))

			result, err = store.List(ctx, "orders.mutation.", "")
			AssertNil(err)
			AssertEqual(len(result.Keys), 0)

			// Deleting already-absent keys is a no-op, not an error.
			AssertNil(store.Delete(ctx, []string{"orders.mutation.1-a"}))
		})
	}
}

func TestConformance_Size(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Put(ctx, "a", []byte("12345"))
			size, err := store.Size(ctx, "a")
			AssertNil(err)
			AssertEqual(size, int64(5))

			_, err = store.Size(ctx, "missing")
			AssertEqual(err, blobstore.ErrNotFound)
		})
	}
}
