// Package ratelimit counts public form submissions per visitor IP. Counts
// reset at local midnight, not on a rolling 24h window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"twym/pkg/requestcontext"
)

// Counter tracks submissions per IP for the current local day.
type Counter interface {
	// Count returns how many submissions the IP has made since local
	// midnight.
	Count(ctx context.Context, ip string) (int, error)
	// Record adds one submission for the IP. Called only after a
	// submission persists, so rejected attempts never consume quota.
	Record(ctx context.Context, ip string) error
}

// dayKey buckets by the local calendar date.
func dayKey(ctx context.Context, ip string) string {
	return ip + ":" + requestcontext.Now(ctx).Local().Format("2006-01-02")
}

// untilNextLocalMidnight returns the remaining lifetime of today's bucket.
func untilNextLocalMidnight(ctx context.Context) time.Duration {
	now := requestcontext.Now(ctx).Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return midnight.Sub(now)
}

// MemoryCounter backs dev/test mode and deployments without Redis.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) Count(ctx context.Context, ip string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[dayKey(ctx, ip)], nil
}

func (c *MemoryCounter) Record(ctx context.Context, ip string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[dayKey(ctx, ip)]++
	return nil
}
