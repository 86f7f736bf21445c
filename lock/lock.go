// Package lock implements the lease-based distributed lock that serializes
// compaction and vacuum against a single collection (spec §4.1). It never
// heartbeats and has no renewal: a lease is either released by its holder or
// expires and becomes eligible for takeover by whoever calls Acquire next.
package lock

import (
	"context"
	"fmt"
	"time"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/coldbase/coldbase/blobstore"
)

// LockActiveError is returned when a lease is held by another session and
// has not yet expired. Callers (compactor, collection maintenance) treat
// this as "someone else is already doing it" and back off silently.
type LockActiveError struct {
	Collection string
	HolderID   string
	ExpiresAt  int64
}

func (e *LockActiveError) Error() string {
	return fmt.Sprintf("lock: %s is held by %s until %d", e.Collection, e.HolderID, e.ExpiresAt)
}

// meta is the JSON body stored at the C.lock key.
type meta struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Options tunes the adaptive lease formula. Zero value means "no adaptive
// component, just Duration".
type Options struct {
	Duration      time.Duration // base leaseDurationMs
	MaxDuration   time.Duration // maxLeaseDurationMs, 0 means no ceiling
	PerByte       time.Duration // leasePerByte, added per byte of FileSize
	PerMutation   time.Duration // leasePerMutation, added per entry in MutationCount
	FileSize      int64
	MutationCount int64
}

func (o Options) adaptiveLease() time.Duration {
	lease := o.Duration
	if o.PerByte > 0 || o.PerMutation > 0 {
		lease += time.Duration(o.FileSize) * o.PerByte
		lease += time.Duration(o.MutationCount) * o.PerMutation
	}
	if o.MaxDuration > 0 && lease > o.MaxDuration {
		lease = o.MaxDuration
	}
	return lease
}

// Manager acquires and releases leases against a blobstore.Store.
type Manager struct {
	Store blobstore.Store
	Now   func() time.Time
}

func NewManager(store blobstore.Store) *Manager {
	return &Manager{Store: store, Now: time.Now}
}

// Lease is a held lock, returned by Acquire. Release must be called on
// every code path, including panics recovered at the caller's boundary.
type Lease struct {
	manager   *Manager
	key       string
	sessionID string
	expiresAt int64
	version   blobstore.Version
	released  bool
}

func lockKey(collection string) string {
	return collection + ".lock"
}

// Acquire implements the acquire procedure from spec §4.1: try a fresh
// putIfNoneMatch first; on precondition failure, read the existing lock and
// take it over via putIfMatch only if it has expired. There is no spin: a
// failed takeover attempt returns LockActiveError immediately.
func (m *Manager) Acquire(ctx context.Context, collection, sessionID string, opts Options) (*Lease, error) {
	key := lockKey(collection)
	now := m.Now().UnixMilli()
	lease := opts.adaptiveLease()
	want := meta{SessionID: sessionID, ExpiresAt: now + lease.Milliseconds()}

	body, err := jsonv2.Marshal(want)
	if err != nil {
		return nil, fmt.Errorf("lock: encode: %w", err)
	}

	version, err := m.Store.PutIfNoneMatch(ctx, key, body)
	if err == nil {
		return &Lease{manager: m, key: key, sessionID: sessionID, expiresAt: want.ExpiresAt, version: version}, nil
	}
	if !blobstore.IsPreconditionFailed(err) {
		return nil, fmt.Errorf("lock: acquire %s: %w", collection, err)
	}

	r, oldVersion, getErr := m.Store.Get(ctx, key)
	if getErr == blobstore.ErrNotFound {
		// Lost a race with a concurrent Release/delete; the key is gone
		// again, so a fresh putIfNoneMatch should now succeed.
		version, retryErr := m.Store.PutIfNoneMatch(ctx, key, body)
		if retryErr != nil {
			if blobstore.IsPreconditionFailed(retryErr) {
				return nil, &LockActiveError{Collection: collection}
			}
			return nil, fmt.Errorf("lock: retry acquire %s: %w", collection, retryErr)
		}
		return &Lease{manager: m, key: key, sessionID: sessionID, expiresAt: want.ExpiresAt, version: version}, nil
	}
	if getErr != nil {
		return nil, fmt.Errorf("lock: read existing %s: %w", collection, getErr)
	}
	defer r.Close()

	var existing meta
	if decodeErr := jsonv2.UnmarshalRead(r, &existing); decodeErr != nil {
		return nil, fmt.Errorf("lock: decode existing %s: %w", collection, decodeErr)
	}

	if now <= existing.ExpiresAt {
		return nil, &LockActiveError{Collection: collection, HolderID: existing.SessionID, ExpiresAt: existing.ExpiresAt}
	}

	newVersion, takeoverErr := m.Store.PutIfMatch(ctx, key, body, oldVersion)
	if takeoverErr != nil {
		if blobstore.IsPreconditionFailed(takeoverErr) {
			return nil, &LockActiveError{Collection: collection, HolderID: existing.SessionID, ExpiresAt: existing.ExpiresAt}
		}
		return nil, fmt.Errorf("lock: takeover %s: %w", collection, takeoverErr)
	}

	return &Lease{manager: m, key: key, sessionID: sessionID, expiresAt: want.ExpiresAt, version: newVersion}, nil
}

// Release writes expiresAt=0 to the lock blob via putIfMatch. Per spec §4.1
// the blob is never deleted, and a failed release is logged by the caller
// and swallowed: the lease will expire naturally regardless.
func (l *Lease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true

	body, err := jsonv2.Marshal(meta{SessionID: l.sessionID, ExpiresAt: 0})
	if err != nil {
		return fmt.Errorf("lock: encode release: %w", err)
	}

	_, err = l.manager.Store.PutIfMatch(ctx, l.key, body, l.version)
	return err
}

func (l *Lease) SessionID() string { return l.sessionID }
func (l *Lease) ExpiresAt() int64  { return l.expiresAt }
