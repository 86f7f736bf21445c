package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions configures the transient-error retry WithRetry wraps around
// a Store, per spec §4.5 step 4 ("wrap in exponential backoff with
// jitter") and the §7 error taxonomy row for transient storage errors.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func (o RetryOptions) fillDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	return o
}

func (o RetryOptions) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.InitialDelay
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(o.MaxAttempts-1)), ctx)
}

// permanent turns a non-transient error into a backoff.PermanentError so
// backoff.Retry gives up immediately instead of burning attempts on
// errors like PreconditionFailedError that retrying can never fix.
func permanent(err error) error {
	if err != nil && !IsTransient(err) {
		return backoff.Permanent(err)
	}
	return err
}

type retryingStore struct {
	Store
	opts RetryOptions
}

// WithRetry wraps store so every operation retries errors IsTransient
// classifies as retryable, with exponential backoff and jitter, capped at
// opts.MaxAttempts attempts. Errors it does not classify as transient
// (precondition failures, ErrNotFound, validation) are returned on the
// first attempt.
func WithRetry(store Store, opts RetryOptions) Store {
	return &retryingStore{Store: store, opts: opts.fillDefaults()}
}

func (r *retryingStore) Put(ctx context.Context, key string, body []byte) (Version, error) {
	var v Version
	err := backoff.Retry(func() error {
		var putErr error
		v, putErr = r.Store.Put(ctx, key, body)
		return permanent(putErr)
	}, r.opts.policy(ctx))
	return v, err
}

func (r *retryingStore) PutIfNoneMatch(ctx context.Context, key string, body []byte) (Version, error) {
	var v Version
	err := backoff.Retry(func() error {
		var putErr error
		v, putErr = r.Store.PutIfNoneMatch(ctx, key, body)
		return permanent(putErr)
	}, r.opts.policy(ctx))
	return v, err
}

func (r *retryingStore) PutIfMatch(ctx context.Context, key string, body []byte, expected Version) (Version, error) {
	var v Version
	err := backoff.Retry(func() error {
		var putErr error
		v, putErr = r.Store.PutIfMatch(ctx, key, body, expected)
		return permanent(putErr)
	}, r.opts.policy(ctx))
	return v, err
}

func (r *retryingStore) Get(ctx context.Context, key string) (io.ReadCloser, Version, error) {
	var (
		body io.ReadCloser
		v    Version
	)
	err := backoff.Retry(func() error {
		var getErr error
		body, v, getErr = r.Store.Get(ctx, key)
		return permanent(getErr)
	}, r.opts.policy(ctx))
	return body, v, err
}

func (r *retryingStore) Size(ctx context.Context, key string) (int64, error) {
	var size int64
	err := backoff.Retry(func() error {
		var sizeErr error
		size, sizeErr = r.Store.Size(ctx, key)
		return permanent(sizeErr)
	}, r.opts.policy(ctx))
	return size, err
}

func (r *retryingStore) List(ctx context.Context, prefix, cursor string) (ListResult, error) {
	var result ListResult
	err := backoff.Retry(func() error {
		var listErr error
		result, listErr = r.Store.List(ctx, prefix, cursor)
		return permanent(listErr)
	}, r.opts.policy(ctx))
	return result, err
}

func (r *retryingStore) Delete(ctx context.Context, keys []string) error {
	return backoff.Retry(func() error {
		return permanent(r.Store.Delete(ctx, keys))
	}, r.opts.policy(ctx))
}

func (r *retryingStore) Append(ctx context.Context, key string, data []byte) error {
	return backoff.Retry(func() error {
		return permanent(r.Store.Append(ctx, key, data))
	}, r.opts.policy(ctx))
}
