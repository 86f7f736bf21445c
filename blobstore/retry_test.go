package blobstore_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/blobstore/memblob"
)

// flakyStore wraps a real Store and fails the first failUntil calls to Put
// with a transient or permanent error, depending on what the test wants to
// exercise, then delegates.
type flakyStore struct {
	blobstore.Store
	err       error
	failUntil int
	attempts  int
}

func (f *flakyStore) Put(ctx context.Context, key string, body []byte) (blobstore.Version, error) {
	f.attempts++
	if f.attempts <= f.failUntil {
		return "", f.err
	}
	return f.Store.Put(ctx, key, body)
}

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	inner := &flakyStore{
		Store:     memblob.New(),
		err:       &blobstore.TransientError{Err: errors.New("connection reset by peer")},
		failUntil: 2,
	}
	store := blobstore.WithRetry(inner, blobstore.RetryOptions{MaxAttempts: 5})

	_, err := store.Put(context.Background(), "a", []byte("hello"))
	AssertNil(err)
	AssertEqual(inner.attempts, 3)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyStore{
		Store:     memblob.New(),
		err:       &blobstore.TransientError{Err: errors.New("service unavailable")},
		failUntil: 100,
	}
	store := blobstore.WithRetry(inner, blobstore.RetryOptions{MaxAttempts: 3})

	_, err := store.Put(context.Background(), "a", []byte("hello"))
	AssertEqual(blobstore.IsTransient(err), true)
	AssertEqual(inner.attempts, 3)
}

func TestWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyStore{
		Store:     memblob.New(),
		err:       &blobstore.PreconditionFailedError{Key: "a"},
		failUntil: 100,
	}
	store := blobstore.WithRetry(inner, blobstore.RetryOptions{MaxAttempts: 5})

	_, err := store.Put(context.Background(), "a", []byte("hello"))
	AssertEqual(blobstore.IsPreconditionFailed(err), true)
	AssertEqual(inner.attempts, 1)
}
