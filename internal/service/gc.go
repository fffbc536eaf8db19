package service

import (
	"context"
	"sync"
	"time"

	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/metrics"
)

// BlacklistGarbageCollector removes blacklist entries that have
// outlived the retention window. Deletions are individually atomic, so
// cancelling a sweep mid-flight leaves a valid, partially swept
// blacklist.
type BlacklistGarbageCollector struct {
	blacklist TokenBlacklist
	retention time.Duration

	mu        sync.Mutex
	lastStats SweepStats
}

// SweepStats tracks metrics from the last garbage collection run.
type SweepStats struct {
	RunAt         time.Time
	EntriesPurged int64
	DurationMs    int64
}

// NewBlacklistGarbageCollector creates a collector with the given
// retention window. Retention must be at least the longest token ttl,
// otherwise live tokens could slip past revocation.
func NewBlacklistGarbageCollector(blacklist TokenBlacklist, retention time.Duration) *BlacklistGarbageCollector {
	return &BlacklistGarbageCollector{
		blacklist: blacklist,
		retention: retention,
	}
}

// RunSweep purges entries older than the configured retention window.
func (gc *BlacklistGarbageCollector) RunSweep(ctx context.Context) error {
	return gc.SweepOlderThan(ctx, gc.retention)
}

// SweepOlderThan purges entries older than maxAge from now.
func (gc *BlacklistGarbageCollector) SweepOlderThan(ctx context.Context, maxAge time.Duration) error {
	start := time.Now()
	cutoff := start.Add(-maxAge)

	purged, err := gc.blacklist.PurgeBlacklist(ctx, cutoff)
	if err != nil {
		return err
	}

	stats := SweepStats{
		RunAt:         start,
		EntriesPurged: purged,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	gc.mu.Lock()
	gc.lastStats = stats
	gc.mu.Unlock()

	metrics.BlacklistSwept(purged, time.Since(start).Seconds())
	return nil
}

// LastStats returns statistics from the most recent sweep.
func (gc *BlacklistGarbageCollector) LastStats() SweepStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.lastStats
}

// StartBackgroundSweep starts a goroutine that sweeps periodically
// until ctx is cancelled.
func (gc *BlacklistGarbageCollector) StartBackgroundSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started blacklist garbage collector",
		"interval", interval,
		"retention", gc.retention)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.RunSweep(ctx); err != nil {
					logger.Log.Error("blacklist sweep failed", "error", err)
				} else {
					stats := gc.LastStats()
					logger.Log.Info("blacklist sweep completed",
						"purged", stats.EntriesPurged,
						"duration_ms", stats.DurationMs)
				}
			case <-ctx.Done():
				logger.Log.Info("blacklist garbage collector shutting down")
				return
			}
		}
	}()
}
