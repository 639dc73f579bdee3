// Package redis provides a Redis client wrapper and domain-specific
// operations for the advisor proxy.
package redis

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// StatsTTL is the TTL for usage statistics (30 days)
const StatsTTL = 30 * 24 * time.Hour

// StatsStore provides per-operation usage statistics
type StatsStore struct {
	client *Client
}

// NewStatsStore creates a new StatsStore
func NewStatsStore(client *Client) *StatsStore {
	return &StatsStore{client: client}
}

// HourlyStats represents usage statistics for a single hour
type HourlyStats struct {
	Hour       string           `json:"hour"` // Format: "2024-02-08T14"
	Total      int64            `json:"total"`
	Operations map[string]int64 `json:"operations"`
}

// RecordRequest records a single request for an operation
func (s *StatsStore) RecordRequest(ctx context.Context, operation string) error {
	key := PrefixStats + currentHourKey()

	if _, err := s.client.HIncrBy(ctx, key, "_total", 1); err != nil {
		return err
	}
	if _, err := s.client.HIncrBy(ctx, key, operation, 1); err != nil {
		return err
	}

	return s.client.Expire(ctx, key, StatsTTL)
}

// GetHourlyStats retrieves statistics for a specific hour key
func (s *StatsStore) GetHourlyStats(ctx context.Context, hourKey string) (*HourlyStats, error) {
	data, err := s.client.HGetAll(ctx, PrefixStats+hourKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	stats := &HourlyStats{
		Hour:       hourKey,
		Operations: make(map[string]int64),
	}

	for field, value := range data {
		count, _ := strconv.ParseInt(value, 10, 64)
		if field == "_total" {
			stats.Total = count
			continue
		}
		stats.Operations[field] = count
	}

	return stats, nil
}

// GetRecentStats retrieves statistics for the last N hours, sorted
// chronologically
func (s *StatsStore) GetRecentStats(ctx context.Context, hours int) ([]*HourlyStats, error) {
	if hours <= 0 {
		hours = 24
	}

	result := make([]*HourlyStats, 0, hours)
	now := time.Now().UTC()

	for i := hours - 1; i >= 0; i-- {
		hourKey := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02T15")
		stats, err := s.GetHourlyStats(ctx, hourKey)
		if err != nil {
			return nil, err
		}
		if stats != nil {
			result = append(result, stats)
		}
	}

	return result, nil
}

// PruneOldStats deletes hourly keys older than the given number of days and
// returns how many were removed
func (s *StatsStore) PruneOldStats(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 30
	}

	keys, err := s.client.ScanAll(ctx, PrefixStats+"*")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var stale []string

	for _, key := range keys {
		hourKey := key[len(PrefixStats):]
		t, err := time.Parse("2006-01-02T15", hourKey)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			stale = append(stale, key)
		}
	}

	sort.Strings(stale)
	if err := s.client.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// currentHourKey returns the hour bucket key for the current time
func currentHourKey() string {
	return time.Now().UTC().Format("2006-01-02T15")
}
