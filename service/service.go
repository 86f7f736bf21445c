// Package service is the collection-admin facade sitting between the api
// resource tree and database.Database: it turns *collection.Collection
// handles into the small Collection view model the HTTP layer serializes,
// and translates database errors into the sentinel errors api expects.
package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/coldbase/coldbase/collection"
	"github.com/coldbase/coldbase/database"
	"github.com/coldbase/coldbase/vector"
)

var ErrorCollectionAlreadyExists = errors.New("collection already exists")

// Collection is the view model returned to callers: enough to render a
// collection listing without leaking the storage-engine types.
type Collection struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

type Service struct {
	db *database.Database

	mu      sync.Mutex
	vectors map[string]*vector.Collection
}

func NewService(db *database.Database) *Service {
	return &Service{db: db, vectors: map[string]*vector.Collection{}}
}

func (s *Service) CreateCollection(name string) (*Collection, error) {
	if _, exists := s.db.GetCollection(name); exists {
		return nil, ErrorCollectionAlreadyExists
	}

	if _, err := s.db.CreateCollection(name); err != nil {
		return nil, err
	}

	return &Collection{Name: name}, nil
}

// CreateVectorCollection creates a plain collection and wraps it with
// vector-field validation and brute-force search, per opts.
func (s *Service) CreateVectorCollection(name string, opts vector.Options) (*Collection, error) {
	if _, exists := s.db.GetCollection(name); exists {
		return nil, ErrorCollectionAlreadyExists
	}

	col, err := s.db.CreateCollection(name)
	if err != nil {
		return nil, err
	}

	vc, err := vector.New(col, opts)
	if err != nil {
		s.db.DropCollection(context.Background(), name)
		return nil, err
	}

	s.mu.Lock()
	s.vectors[name] = vc
	s.mu.Unlock()

	return &Collection{Name: name}, nil
}

func (s *Service) GetCollection(ctx context.Context, name string) (*Collection, error) {
	col, exists := s.db.GetCollection(name)
	if !exists {
		return nil, ErrorCollectionNotFound
	}

	total, err := col.Count(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "service: count collection")
	}

	return &Collection{Name: name, Total: total}, nil
}

func (s *Service) ListCollections(ctx context.Context) ([]*Collection, error) {
	names := s.db.ListCollections()

	result := make([]*Collection, 0, len(names))
	for _, name := range names {
		col, exists := s.db.GetCollection(name)
		if !exists {
			continue // dropped concurrently between ListCollections and GetCollection
		}
		total, err := col.Count(ctx, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "service: count collection %q", name)
		}
		result = append(result, &Collection{Name: name, Total: total})
	}

	return result, nil
}

func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	if _, exists := s.db.GetCollection(name); !exists {
		return ErrorCollectionNotFound
	}

	s.mu.Lock()
	delete(s.vectors, name)
	s.mu.Unlock()

	return s.db.DropCollection(ctx, name)
}

// Handle exposes the underlying collection so the api package can drive
// data operations (Put, Get, Find, Batch) directly against it without
// service re-declaring every one of those methods.
func (s *Service) Handle(name string) (*collection.Collection, bool) {
	return s.db.GetCollection(name)
}

// VectorHandle exposes the vector-search wrapper for collections created
// with CreateVectorCollection.
func (s *Service) VectorHandle(name string) (*vector.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, exists := s.vectors[name]
	return vc, exists
}
