// Package modules provides feature modules for the proxy server.
package modules

import (
	"context"
	"sync"
	"time"

	"github.com/advisorkit/advisor-proxy-go/internal/utils"
	"github.com/advisorkit/advisor-proxy-go/pkg/redis"
)

// UsageStats tracks per-operation request counts in hourly buckets. Counts
// go to Redis when a client is available; otherwise an in-memory map keeps
// the current process's view.
type UsageStats struct {
	statsStore *redis.StatsStore

	mu          sync.RWMutex
	memory      map[string]map[string]int64 // hour -> operation -> count
	initialized bool
	stopChan    chan struct{}
}

// NewUsageStats creates a new UsageStats instance. redisClient may be nil.
func NewUsageStats(redisClient *redis.Client) *UsageStats {
	var store *redis.StatsStore
	if redisClient != nil {
		store = redis.NewStatsStore(redisClient)
	}

	return &UsageStats{
		statsStore: store,
		memory:     make(map[string]map[string]int64),
		stopChan:   make(chan struct{}),
	}
}

// Initialize starts the usage stats module
func (u *UsageStats) Initialize() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.initialized {
		return
	}

	go u.backgroundPrune()

	u.initialized = true
	utils.Info("[UsageStats] Module initialized")
}

// Shutdown stops the usage stats module
func (u *UsageStats) Shutdown() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.initialized {
		return
	}

	close(u.stopChan)
	u.initialized = false
	utils.Info("[UsageStats] Module shutdown")
}

// Track records one request for an operation
func (u *UsageStats) Track(operation string) {
	if operation == "" {
		return
	}

	if u.statsStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := u.statsStore.RecordRequest(ctx, operation); err != nil {
			utils.Debug("[UsageStats] Failed to record request: %v", err)
		}
		return
	}

	hour := time.Now().UTC().Format("2006-01-02T15")
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.memory[hour]; !ok {
		u.memory[hour] = make(map[string]int64)
	}
	u.memory[hour][operation]++
}

// Recent returns hourly stats for the last N hours
func (u *UsageStats) Recent(ctx context.Context, hours int) ([]*redis.HourlyStats, error) {
	if u.statsStore != nil {
		return u.statsStore.GetRecentStats(ctx, hours)
	}

	if hours <= 0 {
		hours = 24
	}

	u.mu.RLock()
	defer u.mu.RUnlock()

	now := time.Now().UTC()
	result := make([]*redis.HourlyStats, 0)
	for i := hours - 1; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02T15")
		ops, ok := u.memory[hour]
		if !ok {
			continue
		}
		stats := &redis.HourlyStats{
			Hour:       hour,
			Operations: make(map[string]int64, len(ops)),
		}
		for op, count := range ops {
			stats.Operations[op] = count
			stats.Total += count
		}
		result = append(result, stats)
	}
	return result, nil
}

// backgroundPrune periodically prunes old statistics
func (u *UsageStats) backgroundPrune() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-u.stopChan:
			return
		case <-ticker.C:
			u.prune()
		}
	}
}

func (u *UsageStats) prune() {
	if u.statsStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pruned, err := u.statsStore.PruneOldStats(ctx, 30)
		if err != nil {
			utils.Warn("[UsageStats] Failed to prune old stats: %v", err)
		} else if pruned > 0 {
			utils.Debug("[UsageStats] Pruned %d old entries", pruned)
		}
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	u.mu.Lock()
	defer u.mu.Unlock()
	for hour := range u.memory {
		t, err := time.Parse("2006-01-02T15", hour)
		if err != nil || t.Before(cutoff) {
			delete(u.memory, hour)
		}
	}
}
