package quota

import (
	"context"
	"sync"
	"time"
)

// window is one key's usage for a single UTC day.
type window struct {
	day  string // "2006-01-02" in UTC
	used int
}

// DailyLimiter implements Limiter with an in-memory fixed window that
// resets at UTC midnight.
//
// A background goroutine evicts entries from previous days to bound
// memory. Call Close to stop it.
type DailyLimiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	stopOnce sync.Once
	done     chan struct{}
}

// NewDailyLimiter creates a limiter allowing limit debates per key per
// UTC day.
func NewDailyLimiter(limit int) *DailyLimiter {
	d := &DailyLimiter{
		limit:   limit,
		now:     time.Now,
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}
	go d.cleanup()
	return d
}

// Limit returns the daily allowance.
func (d *DailyLimiter) Limit() int { return d.limit }

// Allow consumes one unit of key's allowance for the current UTC day.
func (d *DailyLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	day := d.now().UTC().Format(time.DateOnly)

	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[key]
	if !ok || w.day != day {
		w = &window{day: day}
		d.windows[key] = w
	}

	if w.used >= d.limit {
		return false, 0, nil
	}
	w.used++
	return true, d.limit - w.used, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (d *DailyLimiter) Close() error {
	d.stopOnce.Do(func() { close(d.done) })
	return nil
}

// cleanup periodically evicts windows from previous days.
func (d *DailyLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.evictStale()
		}
	}
}

func (d *DailyLimiter) evictStale() {
	day := d.now().UTC().Format(time.DateOnly)

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, w := range d.windows {
		if w.day != day {
			delete(d.windows, key)
		}
	}
}
