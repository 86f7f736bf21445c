package lock

import (
	"context"
	"testing"
	"time"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memblob.New())

	lease, err := m.Acquire(ctx, "orders", "session-1", Options{Duration: time.Minute})
	AssertNil(err)
	AssertNotNil(lease)

	AssertNil(lease.Release(ctx))
}

func TestAcquire_ContendedFailsFast(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memblob.New())

	_, err := m.Acquire(ctx, "orders", "session-1", Options{Duration: time.Minute})
	AssertNil(err)

	_, err = m.Acquire(ctx, "orders", "session-2", Options{Duration: time.Minute})
	AssertNotNil(err)

	_, ok := err.(*LockActiveError)
	AssertEqual(ok, true)
}

func TestAcquire_TakesOverExpiredLease(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()

	past := time.Now().Add(-time.Hour)
	m1 := &Manager{Store: store, Now: func() time.Time { return past }}

	lease1, err := m1.Acquire(ctx, "orders", "session-1", Options{Duration: time.Millisecond})
	AssertNil(err)
	_ = lease1

	m2 := NewManager(store)
	lease2, err := m2.Acquire(ctx, "orders", "session-2", Options{Duration: time.Minute})
	AssertNil(err)
	AssertEqual(lease2.SessionID(), "session-2")
}

func TestAcquire_AdaptiveLeaseScalesWithSize(t *testing.T) {
	opts := Options{
		Duration:      time.Second,
		MaxDuration:   time.Minute,
		PerByte:       time.Millisecond,
		PerMutation:   10 * time.Millisecond,
		FileSize:      1000,
		MutationCount: 50,
	}
	lease := opts.adaptiveLease()
	AssertTrue(lease > time.Second)
	AssertTrue(lease <= time.Minute)
}

func TestAcquire_AdaptiveLeaseCapsAtMax(t *testing.T) {
	opts := Options{
		Duration:    time.Second,
		MaxDuration: 2 * time.Second,
		PerByte:     time.Second,
		FileSize:    1000,
	}
	AssertEqual(opts.adaptiveLease(), 2*time.Second)
}

func TestRelease_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memblob.New())

	lease, err := m.Acquire(ctx, "orders", "session-1", Options{Duration: time.Minute})
	AssertNil(err)

	AssertNil(lease.Release(ctx))
	AssertNil(lease.Release(ctx))
}
