// Package localfs implements the blobstore.Store contract on top of a
// local directory, the way the teacher's collection package opens its
// per-collection file directly with os.OpenFile. It is the default
// backend for the CLI and for package tests that should not depend on
// network credentials.
package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coldbase/coldbase/blobstore"
)

// Store is a blobstore.Store backed by plain files under Dir. Keys map to
// file names directly (no subdirectories), since the contract never
// implies hierarchy.
type Store struct {
	Dir string

	mu sync.Mutex // serializes conditional writes to emulate atomic CAS
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: mkdir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key)
}

// version returns a comparable token derived from mtime+size, which is
// stable across reads as long as nothing else writes the file.
func version(info fs.FileInfo) blobstore.Version {
	return blobstore.Version(fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()))
}

func (s *Store) Put(ctx context.Context, key string, body []byte) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	tmp := p + ".tmp-" + strconv.FormatInt(int64(os.Getpid()), 10)
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("localfs: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("localfs: rename %s: %w", key, err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("localfs: stat %s: %w", key, err)
	}
	return version(info), nil
}

func (s *Store) PutIfNoneMatch(ctx context.Context, key string, body []byte) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", &blobstore.PreconditionFailedError{Key: key}
		}
		return "", fmt.Errorf("localfs: create %s: %w", key, err)
	}
	_, writeErr := f.Write(body)
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(p)
		return "", fmt.Errorf("localfs: write %s: %w", key, writeErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("localfs: close %s: %w", key, closeErr)
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("localfs: stat %s: %w", key, err)
	}
	return version(info), nil
}

func (s *Store) PutIfMatch(ctx context.Context, key string, body []byte, expected blobstore.Version) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &blobstore.PreconditionFailedError{Key: key}
		}
		return "", fmt.Errorf("localfs: stat %s: %w", key, err)
	}
	if version(info) != expected {
		return "", &blobstore.PreconditionFailedError{Key: key}
	}
	prevModTime := info.ModTime()

	tmp := p + ".tmp-" + strconv.FormatInt(int64(os.Getpid()), 10)
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("localfs: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("localfs: rename %s: %w", key, err)
	}

	info, err = os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("localfs: stat %s: %w", key, err)
	}
	// A rewrite within the filesystem's timestamp granularity keeps the old
	// mtime; move it forward so the replaced version never matches again.
	if !info.ModTime().After(prevModTime) {
		bumped := prevModTime.Add(time.Microsecond)
		if err := os.Chtimes(p, bumped, bumped); err != nil {
			return "", fmt.Errorf("localfs: chtimes %s: %w", key, err)
		}
		if info, err = os.Stat(p); err != nil {
			return "", fmt.Errorf("localfs: stat %s: %w", key, err)
		}
	}
	return version(info), nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, blobstore.Version, error) {
	p := s.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", blobstore.ErrNotFound
		}
		return nil, "", fmt.Errorf("localfs: stat %s: %w", key, err)
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", blobstore.ErrNotFound
		}
		return nil, "", fmt.Errorf("localfs: open %s: %w", key, err)
	}
	return f, version(info), nil
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, blobstore.ErrNotFound
		}
		return 0, fmt.Errorf("localfs: stat %s: %w", key, err)
	}
	return info.Size(), nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string) (blobstore.ListResult, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return blobstore.ListResult{}, nil
		}
		return blobstore.ListResult{}, fmt.Errorf("localfs: readdir: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, ".tmp-") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)

	// localfs never pages: the whole listing is returned on the first
	// call and cursor is always ignored/empty on return.
	if cursor != "" {
		return blobstore.ListResult{}, nil
	}

	return blobstore.ListResult{Keys: keys}, nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("localfs: remove %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(key)
	existing, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localfs: read %s: %w", key, err)
	}

	var out []byte
	if len(existing) == 0 {
		out = data
	} else {
		out = make([]byte, 0, len(existing)+1+len(data))
		out = append(out, existing...)
		out = append(out, '\n')
		out = append(out, data...)
	}

	tmp := p + ".tmp-" + strconv.FormatInt(int64(os.Getpid()), 10)
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("localfs: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("localfs: rename %s: %w", key, err)
	}
	return nil
}
