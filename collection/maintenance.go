package collection

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coldbase/coldbase/compactor"
	"github.com/coldbase/coldbase/lock"
)

// TriggerMode selects how a maintenance operation is dispatched after a
// write, per spec §4.7.
type TriggerMode int

const (
	TriggerDisabled TriggerMode = iota
	TriggerAlways
	TriggerProbabilistic
)

// Trigger configures one of AutoCompact/AutoVacuum.
type Trigger struct {
	Mode                    TriggerMode
	Probability             float64
	MutationThreshold       int
	AfterCompactProbability float64 // AutoVacuum only: rolled again after a successful auto-compact
	MaxRetries              int
	RetryDelay              time.Duration
}

func (t Trigger) enabled() bool { return t.Mode != TriggerDisabled }

func (t Trigger) shouldFire(ctx context.Context, c *Collection) bool {
	switch t.Mode {
	case TriggerDisabled:
		return false
	case TriggerAlways:
		return true
	case TriggerProbabilistic:
		if rand.Float64() >= t.Probability {
			return false
		}
		if t.MutationThreshold <= 0 {
			return true
		}
		keys, err := listAllMutations(ctx, c.store, c.name)
		if err != nil {
			return false
		}
		return len(keys) >= t.MutationThreshold
	default:
		return false
	}
}

// scheduleMaintenance is called after every acknowledged write. Compact and
// vacuum runs are dispatched to a background goroutine and never awaited;
// the trigger check itself runs on the caller's goroutine, and with a
// MutationThreshold set it lists the pending mutation blobs first.
func (c *Collection) scheduleMaintenance(ctx context.Context) {
	if c.opts.AutoCompact.enabled() && c.opts.AutoCompact.shouldFire(ctx, c) {
		go c.runMaintenance(context.Background(), "compact", c.opts.AutoCompact, func(ctx context.Context) error {
			result, err := compactor.Compact(ctx, c.store, c.lock, c.name, c.sessionID, c.opts.Compact)
			if err == nil && result.MutationsProcessed > 0 {
				c.invalidateCache()
				if c.opts.AutoVacuum.enabled() && c.opts.AutoVacuum.AfterCompactProbability > 0 {
					if rand.Float64() < c.opts.AutoVacuum.AfterCompactProbability {
						go c.runMaintenance(context.Background(), "vacuum", c.opts.AutoVacuum, c.runVacuum)
					}
				}
			}
			return err
		})
		return
	}

	if c.opts.AutoVacuum.enabled() && c.opts.AutoVacuum.shouldFire(ctx, c) {
		go c.runMaintenance(context.Background(), "vacuum", c.opts.AutoVacuum, c.runVacuum)
	}
}

// Compact runs a synchronous compaction pass and returns its result,
// letting a caller (typically an explicit maintenance endpoint) drive
// compaction on demand instead of waiting on AutoCompact.
func (c *Collection) Compact(ctx context.Context) (compactor.CompactResult, error) {
	result, err := compactor.Compact(ctx, c.store, c.lock, c.name, c.sessionID, c.opts.Compact)
	if err == nil {
		c.invalidateCache()
	}
	return result, err
}

// Vacuum runs a synchronous vacuum pass and returns its result.
func (c *Collection) Vacuum(ctx context.Context) (compactor.VacuumResult, error) {
	result, err := compactor.Vacuum(ctx, c.store, c.lock, c.name, c.sessionID, c.opts.Vacuum)
	if err == nil {
		c.invalidateCache()
	}
	return result, err
}

func (c *Collection) runVacuum(ctx context.Context) error {
	_, err := compactor.Vacuum(ctx, c.store, c.lock, c.name, c.sessionID, c.opts.Vacuum)
	if err == nil {
		c.invalidateCache()
	}
	return err
}

// runMaintenance runs op, silently skipping on lock contention and
// retrying any other error with exponential backoff and jitter up to
// trigger.MaxRetries times, per spec §4.7.
func (c *Collection) runMaintenance(ctx context.Context, name string, trigger Trigger, op func(context.Context) error) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		runErr := op(ctx)
		if runErr == nil {
			return nil
		}
		if _, contended := runErr.(*lock.LockActiveError); contended {
			return backoff.Permanent(runErr)
		}
		return runErr
	}, retryPolicy(trigger))

	if err == nil {
		return
	}
	if _, contended := err.(*lock.LockActiveError); contended {
		return
	}

	c.opts.Logger.Errorf("collection: maintenance %s failed for %s after %d attempts: %v", name, c.name, attempts, err)
	if c.opts.OnMaintenanceFailure != nil {
		c.opts.OnMaintenanceFailure(c.name, name, err, attempts)
	}
}

func retryPolicy(trigger Trigger) backoff.BackOff {
	delay := trigger.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = delay
	eb.MaxElapsedTime = 0

	maxRetries := trigger.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return backoff.WithMaxRetries(eb, uint64(maxRetries))
}
