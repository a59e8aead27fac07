// ABOUTME: In-process Counter backed by a map of per-window counts
// ABOUTME: A background goroutine sweeps expired windows once a minute

package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type windowEntry struct {
	count   int64
	expires time.Time
}

// MemoryCounter counts admissions in process memory. Counts are lost on restart
// and are not shared between gateway instances.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	done    chan struct{}
	closed  bool
}

// NewMemoryCounter creates a MemoryCounter and starts its sweeper.
func NewMemoryCounter() *MemoryCounter {
	c := &MemoryCounter{
		windows: make(map[string]*windowEntry),
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Incr increments the count for key in the window starting at windowStart.
func (c *MemoryCounter) Incr(ctx context.Context, key string, windowStart time.Time, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
	entry, ok := c.windows[k]
	if !ok {
		entry = &windowEntry{expires: windowStart.Add(ttl)}
		c.windows[k] = entry
	}
	entry.count++
	return entry.count, nil
}

// Len returns the number of tracked windows.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// cleanup periodically removes expired windows
func (c *MemoryCounter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep(time.Now())
		case <-c.done:
			return
		}
	}
}

// Sweep drops windows that expired before now.
func (c *MemoryCounter) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.windows {
		if !now.Before(entry.expires) {
			delete(c.windows, k)
		}
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (c *MemoryCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
	return nil
}
