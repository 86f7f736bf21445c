// Package memblob is an in-memory blobstore.Store test double used by the
// engine packages' unit tests, so lock/compactor/collection tests don't pay
// filesystem costs or need a localfs.Store per Environment() call.
package memblob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/coldbase/coldbase/blobstore"
)

type object struct {
	body    []byte
	version int64
}

type Store struct {
	mu      sync.Mutex
	objects map[string]*object
	seq     int64
}

func New() *Store {
	return &Store{objects: map[string]*object{}}
}

func (s *Store) nextVersion() blobstore.Version {
	s.seq++
	return blobstore.Version(strconv.FormatInt(s.seq, 10))
}

func (s *Store) Put(ctx context.Context, key string, body []byte) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.nextVersion()
	s.objects[key] = &object{body: append([]byte{}, body...), version: s.seq}
	return v, nil
}

func (s *Store) PutIfNoneMatch(ctx context.Context, key string, body []byte) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists {
		return "", &blobstore.PreconditionFailedError{Key: key}
	}
	v := s.nextVersion()
	s.objects[key] = &object{body: append([]byte{}, body...), version: s.seq}
	return v, nil
}

func (s *Store) PutIfMatch(ctx context.Context, key string, body []byte, expected blobstore.Version) (blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[key]
	if !exists {
		return "", &blobstore.PreconditionFailedError{Key: key}
	}
	if strconv.FormatInt(obj.version, 10) != string(expected) {
		return "", &blobstore.PreconditionFailedError{Key: key}
	}

	v := s.nextVersion()
	s.objects[key] = &object{body: append([]byte{}, body...), version: s.seq}
	return v, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, blobstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, "", blobstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.body)), blobstore.Version(strconv.FormatInt(obj.version, 10)), nil
}

func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[key]
	if !exists {
		return 0, blobstore.ErrNotFound
	}
	return int64(len(obj.body)), nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string) (blobstore.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cursor != "" {
		return blobstore.ListResult{}, nil
	}

	keys := make([]string, 0)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return blobstore.ListResult{Keys: keys}, nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[key]
	if !exists || len(obj.body) == 0 {
		s.seq++
		s.objects[key] = &object{body: append([]byte{}, data...), version: s.seq}
		return nil
	}

	out := make([]byte, 0, len(obj.body)+1+len(data))
	out = append(out, obj.body...)
	out = append(out, '\n')
	out = append(out, data...)

	s.seq++
	s.objects[key] = &object{body: out, version: s.seq}
	return nil
}

// Reset clears all objects, for use between biff Environment() blocks.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = map[string]*object{}
}
