// Package configuration is the flat, goconfig-readable settings struct for
// cmd/coldbase: HTTP bind address, blob store selection, and every engine
// tunable from the collection/compactor/lock/vector packages.
package configuration

import (
	"time"

	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/collection"
	"github.com/coldbase/coldbase/compactor"
	"github.com/coldbase/coldbase/lock"
)

type Configuration struct {
	HttpAddr   string `usage:"HTTP address"`
	Version    bool   `usage:"show version and exit"`
	ShowBanner bool   `usage:"show big banner"`
	ShowConfig bool   `usage:"print config"`

	// Blob store selection.
	StoreKind string `usage:"blob store backend: local|s3|azure"`
	StoreDir  string `usage:"data directory (StoreKind=local)"`

	S3Bucket   string `usage:"S3 bucket name (StoreKind=s3)"`
	S3Region   string `usage:"S3 region (StoreKind=s3)"`
	S3Endpoint string `usage:"S3-compatible endpoint override (StoreKind=s3)"`

	AzureContainer        string `usage:"Azure Blob container name (StoreKind=azure)"`
	AzureConnectionString string `usage:"Azure Storage connection string (StoreKind=azure)"`

	// Lease tuning, spec §4.1.
	LeaseDurationMs    int64 `usage:"base maintenance lease duration in ms"`
	LeaseMaxDurationMs int64 `usage:"maximum adaptive lease duration in ms"`
	LeasePerByteNs     int64 `usage:"extra lease duration per snapshot byte, in ns"`
	LeasePerMutationMs int64 `usage:"extra lease duration per pending mutation, in ms"`

	// Storage-call retry tuning, spec §4.5 step 4/§7.
	RetryMaxAttempts    int   `usage:"attempts per storage call before giving up on a transient error"`
	RetryInitialDelayMs int64 `usage:"initial backoff delay before the first retry, in ms"`

	// Compaction tuning, spec §4.2.
	CompactParallelism int `usage:"concurrent mutation blob fetches during compaction"`
	CompactCopyBuffer  int `usage:"buffered-append flush threshold in bytes"`
	CompactDeleteChunk int `usage:"mutation blobs deleted per batch after compaction"`

	// Vacuum tuning, spec §4.3.
	VacuumCacheSize int `usage:"bounded LRU size for vacuum's id to line-number cache"`

	// Bloom filter, spec §4.4/§5.2.
	BloomExpectedItems     uint    `usage:"expected distinct ids, sizes the bloom filter"`
	BloomFalsePositiveRate float64 `usage:"target bloom filter false positive rate"`

	UseIndex bool `usage:"use the byte-offset index for point lookups"`
	UseBloom bool `usage:"use the bloom filter for point lookups"`

	TTLField         string        `usage:"record field holding a millisecond expiry timestamp"`
	TTLSweepInterval time.Duration `usage:"interval between background TTL sweeps, 0 disables"`

	// Auto-compact/auto-vacuum presets, spec §4.7.
	AutoCompactProbability       float64 `usage:"probability of triggering compaction after a write"`
	AutoCompactMutationThreshold int     `usage:"minimum pending mutations before auto-compact fires"`
	AutoCompactMaxRetries        int     `usage:"maintenance retries before giving up"`
	AutoCompactRetryDelayMs      int64   `usage:"initial backoff delay for maintenance retries, in ms"`

	AutoVacuumProbability             float64 `usage:"probability of triggering vacuum after a write"`
	AutoVacuumAfterCompactProbability float64 `usage:"probability of chaining vacuum after a successful auto-compact"`
	AutoVacuumMaxRetries              int     `usage:"maintenance retries before giving up"`
	AutoVacuumRetryDelayMs            int64   `usage:"initial backoff delay for maintenance retries, in ms"`
}

// Default returns the serverless presets recommended in spec §4.7: a low
// but nonzero probability of self-healing maintenance on every write,
// tuned to keep the amortized cost per write low while still bounding how
// far a busy collection's mutation log can grow between accesses.
func Default() Configuration {
	return Configuration{
		HttpAddr: ":8080",

		StoreKind: "local",
		StoreDir:  "./data",

		LeaseDurationMs:    30_000,
		LeaseMaxDurationMs: 300_000,
		LeasePerByteNs:     100,
		LeasePerMutationMs: 50,

		RetryMaxAttempts:    5,
		RetryInitialDelayMs: 100,

		CompactParallelism: 5,
		CompactCopyBuffer:  64 * 1024,
		CompactDeleteChunk: 100,

		VacuumCacheSize: 100_000,

		BloomExpectedItems:     100_000,
		BloomFalsePositiveRate: 0.01,

		UseIndex: true,
		UseBloom: true,

		AutoCompactProbability:       0.10,
		AutoCompactMutationThreshold: 5,
		AutoCompactMaxRetries:        2,
		AutoCompactRetryDelayMs:      1000,

		AutoVacuumProbability:             0.01,
		AutoVacuumAfterCompactProbability: 0.10,
		AutoVacuumMaxRetries:              2,
		AutoVacuumRetryDelayMs:            1000,
	}
}

// CollectionOptions translates the flat configuration into the nested
// options collection.New expects.
func (c Configuration) CollectionOptions() collection.Options {
	return collection.Options{
		TTLField: c.TTLField,
		UseIndex: c.UseIndex,
		UseBloom: c.UseBloom,

		Lease: lock.Options{
			Duration:    time.Duration(c.LeaseDurationMs) * time.Millisecond,
			MaxDuration: time.Duration(c.LeaseMaxDurationMs) * time.Millisecond,
			PerByte:     time.Duration(c.LeasePerByteNs),
			PerMutation: time.Duration(c.LeasePerMutationMs) * time.Millisecond,
		},
		Retry: blobstore.RetryOptions{
			MaxAttempts:  c.RetryMaxAttempts,
			InitialDelay: time.Duration(c.RetryInitialDelayMs) * time.Millisecond,
		},

		Compact: compactor.CompactOptions{
			Common: compactor.Common{
				Parallelism:            c.CompactParallelism,
				CopyBufferSize:         c.CompactCopyBuffer,
				DeleteChunkSize:        c.CompactDeleteChunk,
				BloomExpectedItems:     c.BloomExpectedItems,
				BloomFalsePositiveRate: c.BloomFalsePositiveRate,
			},
		},
		Vacuum: compactor.VacuumOptions{
			Common: compactor.Common{
				Parallelism:            c.CompactParallelism,
				CopyBufferSize:         c.CompactCopyBuffer,
				DeleteChunkSize:        c.CompactDeleteChunk,
				BloomExpectedItems:     c.BloomExpectedItems,
				BloomFalsePositiveRate: c.BloomFalsePositiveRate,
			},
			CacheSize: c.VacuumCacheSize,
		},

		AutoCompact: collection.Trigger{
			Mode:              collection.TriggerProbabilistic,
			Probability:       c.AutoCompactProbability,
			MutationThreshold: c.AutoCompactMutationThreshold,
			MaxRetries:        c.AutoCompactMaxRetries,
			RetryDelay:        time.Duration(c.AutoCompactRetryDelayMs) * time.Millisecond,
		},
		AutoVacuum: collection.Trigger{
			Mode:                    collection.TriggerProbabilistic,
			Probability:             c.AutoVacuumProbability,
			AfterCompactProbability: c.AutoVacuumAfterCompactProbability,
			MaxRetries:              c.AutoVacuumMaxRetries,
			RetryDelay:              time.Duration(c.AutoVacuumRetryDelayMs) * time.Millisecond,
		},
	}
}
