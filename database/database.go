// Package database is the multi-collection registry: it owns the
// blobstore.Store injected at startup, lazily opens collection.Collection
// instances backed by it, and tracks the small set of names discovered by
// listing storage.
package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/collection"
	"github.com/coldbase/coldbase/streamutil"
	"github.com/coldbase/coldbase/utils"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

// Config wires a Database to its storage backend and the default
// collection options every newly created collection inherits.
type Config struct {
	Store             blobstore.Store
	CollectionOptions collection.Options
	Logger            streamutil.Logger
}

type Database struct {
	config Config

	mu          sync.Mutex
	status      string
	collections map[string]*collection.Collection

	exit chan struct{}
}

func NewDatabase(config Config) *Database {
	if config.Logger == nil {
		config.Logger = streamutil.NopLogger
	}
	return &Database{
		config:      config,
		status:      StatusOpening,
		collections: map[string]*collection.Collection{},
		exit:        make(chan struct{}),
	}
}

func (db *Database) GetStatus() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.status
}

// CreateCollection opens a named collection against the configured store.
// Creating an already-open collection is an error: use GetCollection
// instead.
func (db *Database) CreateCollection(name string) (*collection.Collection, error) {
	if err := collection.ValidateName(name); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.collections[name]; exists {
		return nil, fmt.Errorf("database: collection %q already exists", name)
	}

	col, err := collection.New(db.config.Store, name, db.config.CollectionOptions)
	if err != nil {
		return nil, err
	}
	db.collections[name] = col
	return col, nil
}

func (db *Database) GetCollection(name string) (*collection.Collection, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	col, exists := db.collections[name]
	return col, exists
}

func (db *Database) ListCollections() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return utils.GetKeys(db.collections)
}

// DropCollection removes every blob belonging to the collection: the
// snapshot, index, bloom, lock, and any still-pending mutation blobs.
func (db *Database) DropCollection(ctx context.Context, name string) error {
	db.mu.Lock()
	_, exists := db.collections[name]
	db.mu.Unlock()
	if !exists {
		return fmt.Errorf("database: collection %q not found", name)
	}

	keys, err := listAllWithPrefix(ctx, db.config.Store, name)
	if err != nil {
		return fmt.Errorf("database: list blobs for %q: %w", name, err)
	}
	if err := db.config.Store.Delete(ctx, keys); err != nil {
		return fmt.Errorf("database: delete blobs for %q: %w", name, err)
	}

	db.mu.Lock()
	delete(db.collections, name)
	db.mu.Unlock()
	return nil
}

func listAllWithPrefix(ctx context.Context, store blobstore.Store, name string) ([]string, error) {
	var keys []string
	cursor := ""
	for {
		result, err := store.List(ctx, name+".", cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, result.Keys...)
		if result.NextCursor == "" {
			return keys, nil
		}
		cursor = result.NextCursor
	}
}

// Load discovers every existing collection by listing every key in the
// store and grouping by the name preceding its first blob-kind suffix,
// then opens a collection.Collection for each.
func (db *Database) Load(ctx context.Context) error {
	db.config.Logger.Infof("database: loading collections")

	names, err := discoverCollectionNames(ctx, db.config.Store)
	if err != nil {
		db.mu.Lock()
		db.status = StatusClosing
		db.mu.Unlock()
		return err
	}

	db.mu.Lock()
	for _, name := range names {
		if _, exists := db.collections[name]; exists {
			continue
		}
		col, openErr := collection.New(db.config.Store, name, db.config.CollectionOptions)
		if openErr != nil {
			db.config.Logger.Errorf("database: open collection %q: %v", name, openErr)
			continue
		}
		db.collections[name] = col
	}
	db.status = StatusOperating
	db.mu.Unlock()

	return nil
}

func discoverCollectionNames(ctx context.Context, store blobstore.Store) ([]string, error) {
	var allKeys []string
	cursor := ""
	for {
		result, err := store.List(ctx, "", cursor)
		if err != nil {
			return nil, err
		}
		allKeys = append(allKeys, result.Keys...)
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	seen := map[string]bool{}
	var names []string
	for _, key := range allKeys {
		name := collectionNameFromKey(key)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

var knownSuffixes = []string{".jsonl.tmp", ".jsonl", ".mutation.", ".lock", ".idx", ".bloom"}

func collectionNameFromKey(key string) string {
	for _, suffix := range knownSuffixes {
		if idx := strings.Index(key, suffix); idx > 0 {
			return key[:idx]
		}
	}
	return ""
}

// Start runs Load in the background and blocks until Stop is called, the
// way the teacher's main loop keeps the process alive under an HTTP
// server.
func (db *Database) Start(ctx context.Context) error {
	go db.Load(ctx)
	<-db.exit
	return nil
}

func (db *Database) Stop() error {
	defer close(db.exit)

	db.mu.Lock()
	db.status = StatusClosing
	db.mu.Unlock()

	return nil
}
