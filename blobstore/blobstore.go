// Package blobstore defines the abstract contract every Coldbase storage
// backend must satisfy. The engine packages (lock, compactor, collection,
// vector) depend only on the Store interface declared here; concrete
// drivers live in sibling packages (localfs, s3store, azureblob) and are
// never imported by the engine itself.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// Version is an opaque compare token (an ETag, a filesystem mtime, ...)
// returned by writes and reads, and consumed by the conditional write
// primitives.
type Version string

// ObjectMeta describes a stored object without fetching its body.
type ObjectMeta struct {
	Version Version
	Size    int64
}

// ListResult is one page of a prefix listing. Callers iterate by feeding
// NextCursor back into List until it is empty.
type ListResult struct {
	Keys       []string
	NextCursor string
}

// ErrNotFound is returned by Get and Size when the key does not exist.
var ErrNotFound = errors.New("blobstore: key not found")

// PreconditionFailedError is returned by PutIfNoneMatch and PutIfMatch when
// the conditional check does not hold: the key already exists (for
// PutIfNoneMatch) or the current version does not match the expected one,
// including when the key is absent (for PutIfMatch).
type PreconditionFailedError struct {
	Key string
}

func (e *PreconditionFailedError) Error() string {
	return "blobstore: precondition failed for key '" + e.Key + "'"
}

// IsPreconditionFailed reports whether err is (or wraps) a
// PreconditionFailedError.
func IsPreconditionFailed(err error) bool {
	var target *PreconditionFailedError
	return errors.As(err, &target)
}

// Store is the abstract blob store contract (spec §6.1). All keys are
// flat, utf-8 strings; there is no directory structure.
type Store interface {
	// Put writes body unconditionally, overwriting any previous content.
	Put(ctx context.Context, key string, body []byte) (Version, error)

	// PutIfNoneMatch writes body only if key does not currently exist.
	// Returns a *PreconditionFailedError if it does.
	PutIfNoneMatch(ctx context.Context, key string, body []byte) (Version, error)

	// PutIfMatch writes body only if the current version of key equals
	// version. Returns a *PreconditionFailedError if the key is absent or
	// its version differs.
	PutIfMatch(ctx context.Context, key string, body []byte, version Version) (Version, error)

	// Get returns the object body and its version. The caller must Close
	// the returned ReadCloser. Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, Version, error)

	// Size returns the content length of key in bytes without fetching the
	// body. Returns ErrNotFound if the key is absent.
	Size(ctx context.Context, key string) (int64, error)

	// List enumerates keys starting with prefix. Order is unspecified.
	// Pass the returned NextCursor back in to continue; an empty
	// NextCursor means the listing is complete.
	List(ctx context.Context, prefix, cursor string) (ListResult, error)

	// Delete removes keys. It is idempotent: absent keys are ignored.
	// Implementations chunk internally to respect API limits.
	Delete(ctx context.Context, keys []string) error

	// Append realizes a logical append: if key exists and is non-empty,
	// the result is old-content + "\n" + data; if key exists and is
	// empty, the result is just data (no leading newline); if key is
	// absent, the result is just data.
	Append(ctx context.Context, key string, data []byte) error
}
