package collection

import (
	"context"
	"strconv"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
)

func TestValidateName(t *testing.T) {
	AssertNil(ValidateName("orders"))
	AssertNil(ValidateName("orders-v2"))
	AssertNotNil(ValidateName(""))
	AssertNotNil(ValidateName(".hidden"))
	AssertNotNil(ValidateName("has spaces"))
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c, err := New(memblob.New(), "orders", Options{})
	AssertNil(err)

	AssertNil(c.Put(ctx, "o1", []byte(`{"id":"o1","total":10}`)))

	rec, ok, err := c.Get(ctx, "o1", nil)
	AssertNil(err)
	AssertEqual(ok, true)
	AssertEqual(string(rec.Data), `{"id":"o1","total":10}`)
}

func TestGet_MissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	_, ok, err := c.Get(ctx, "missing", nil)
	AssertNil(err)
	AssertEqual(ok, false)
}

func TestDelete_TombstonesRecord(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	AssertNil(c.Put(ctx, "o1", []byte(`{"id":"o1"}`)))
	AssertNil(c.Delete(ctx, "o1"))

	_, ok, err := c.Get(ctx, "o1", nil)
	AssertNil(err)
	AssertEqual(ok, false)
}

func TestPut_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	AssertNil(c.Put(ctx, "o1", []byte(`{"v":1}`)))
	AssertNil(c.Put(ctx, "o1", []byte(`{"v":2}`)))

	rec, ok, err := c.Get(ctx, "o1", nil)
	AssertNil(err)
	AssertEqual(ok, true)
	AssertEqual(string(rec.Data), `{"v":2}`)
}

func TestBatch_WritesOneMutationBlob(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	c, _ := New(store, "orders", Options{})

	AssertNil(c.Batch(ctx, []BatchWrite{
		{ID: "o1", Data: []byte(`{"v":1}`)},
		{ID: "o2", Data: []byte(`{"v":2}`)},
	}))

	keys, err := listAllMutations(ctx, store, "orders")
	AssertNil(err)
	AssertEqual(len(keys), 1)

	got, err := c.GetMany(ctx, []string{"o1", "o2"})
	AssertNil(err)
	AssertEqual(len(got), 2)
}

func TestPut_RejectsOversizedMutation(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{MaxMutationSize: 8})

	err := c.Put(ctx, "o1", []byte(`{"a":"loooooong"}`))
	AssertNotNil(err)
	_, ok := err.(*SizeLimitError)
	AssertEqual(ok, true)
}

func TestFind_FiltersByWhereAndLimit(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	c.Put(ctx, "o1", []byte(`{"status":"open"}`))
	c.Put(ctx, "o2", []byte(`{"status":"closed"}`))
	c.Put(ctx, "o3", []byte(`{"status":"open"}`))

	found, err := c.Find(ctx, FindOptions{Where: map[string]any{"status": "open"}})
	AssertNil(err)
	AssertEqual(len(found), 2)
}

func TestFind_SkipsTombstones(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	c.Put(ctx, "o1", []byte(`{}`))
	c.Delete(ctx, "o1")

	found, err := c.Find(ctx, FindOptions{})
	AssertNil(err)
	AssertEqual(len(found), 0)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "orders", Options{})

	c.Put(ctx, "o1", []byte(`{}`))
	c.Put(ctx, "o2", []byte(`{}`))

	n, err := c.Count(ctx, nil)
	AssertNil(err)
	AssertEqual(n, 2)
}

func TestTTL_ExpiredRecordsAreFilteredFromReads(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "events", Options{TTLField: "expiresAt"})

	past := nowMillis() - 1000
	c.Put(ctx, "e1", []byte(`{"expiresAt":`+strconv.FormatInt(past, 10)+`}`))

	_, ok, err := c.Get(ctx, "e1", nil)
	AssertNil(err)
	AssertEqual(ok, false)
}

func TestDeleteExpired_TombstonesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	c, _ := New(memblob.New(), "events", Options{TTLField: "expiresAt"})

	past := nowMillis() - 1000
	c.Put(ctx, "e1", []byte(`{"expiresAt":`+strconv.FormatInt(past, 10)+`}`))

	n, err := c.DeleteExpired(ctx)
	AssertNil(err)
	AssertEqual(n, 1)

	keys, err := listAllMutations(ctx, c.store, "events")
	AssertNil(err)
	AssertEqual(len(keys), 2) // original write + tombstone
}
