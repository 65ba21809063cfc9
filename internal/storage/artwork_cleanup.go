package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CleanupConfig holds configuration for the artwork cleanup job
type CleanupConfig struct {
	Interval time.Duration // Interval between cleanup runs
	MaxAge   time.Duration // Cached artwork older than this is deleted
	Enabled  bool
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval: 24 * time.Hour,
		MaxAge:   30 * 24 * time.Hour,
		Enabled:  true,
	}
}

// CleanupResult holds the result of a cleanup run
type CleanupResult struct {
	StartTime    time.Time
	EndTime      time.Time
	FilesScanned int
	Expired      int
	Deleted      int
	BytesFreed   int64
	Errors       []string
}

// CleanupJob periodically drops stale cached artwork so it is fetched
// again from the metadata API on the next download
type CleanupJob struct {
	store  *ArtworkStore
	config CleanupConfig
	logger *slog.Logger
	now    func() time.Time

	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	lastResult *CleanupResult
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(store *ArtworkStore, config CleanupConfig, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultCleanupConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	return &CleanupJob{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the periodic cleanup job
func (j *CleanupJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return errors.New("cleanup job is already running")
	}
	if !j.config.Enabled {
		j.logger.Info("Artwork cleanup job is disabled")
		return nil
	}

	j.running = true
	j.stopChan = make(chan struct{})
	j.wg.Add(1)
	go j.run()

	j.logger.Info("Artwork cleanup job started", "interval", j.config.Interval, "max_age", j.config.MaxAge)
	return nil
}

// Stop stops the periodic cleanup job
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopChan)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("Artwork cleanup job stopped")
}

// IsRunning returns whether the cleanup job is running
func (j *CleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// LastResult returns the result of the last cleanup run
func (j *CleanupJob) LastResult() *CleanupResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			j.RunNow(ctx)
			cancel()
		case <-j.stopChan:
			return
		}
	}
}

// RunNow performs a single cleanup run
func (j *CleanupJob) RunNow(ctx context.Context) *CleanupResult {
	result := &CleanupResult{StartTime: j.now()}

	expired, scanned, err := j.store.ListOlderThan(ctx, result.StartTime.Add(-j.config.MaxAge))
	result.FilesScanned = scanned
	result.Expired = len(expired)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("error listing artwork: %v", err))
	}

	if len(expired) > 0 {
		keys := make([]string, len(expired))
		sizes := make(map[string]int64, len(expired))
		for i, obj := range expired {
			keys[i] = obj.Key
			sizes[obj.Key] = obj.Size
		}

		deleted, failures, err := j.store.DeleteByKeys(ctx, keys)
		result.Deleted = deleted
		result.Errors = append(result.Errors, failures...)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		if len(failures) == 0 && err == nil {
			for _, size := range sizes {
				result.BytesFreed += size
			}
		}
	}

	result.EndTime = j.now()

	j.mu.Lock()
	j.lastResult = result
	j.mu.Unlock()

	j.logger.Info("Artwork cleanup completed",
		"scanned", result.FilesScanned,
		"expired", result.Expired,
		"deleted", result.Deleted,
		"bytes_freed", result.BytesFreed,
		"errors", len(result.Errors),
		"duration", result.EndTime.Sub(result.StartTime))
	return result
}
