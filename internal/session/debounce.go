package session

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces bursts of work per key. Each Schedule call replaces
// the pending function for its key and restarts the quiet period; the latest
// function runs once the key has been quiet for the full period.
type Debouncer struct {
	quiet   time.Duration
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
}

type debounced struct {
	timer *time.Timer
	fn    func(context.Context)
}

// NewDebouncer creates a debouncer. timeout bounds each timer-triggered run.
func NewDebouncer(quiet, timeout time.Duration) *Debouncer {
	return &Debouncer{
		quiet:   quiet,
		timeout: timeout,
		pending: make(map[string]*debounced),
	}
}

// Schedule arranges for fn to run after the quiet period, replacing any
// function already pending for key.
func (d *Debouncer) Schedule(key string, fn func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	p := &debounced{fn: fn}
	p.timer = time.AfterFunc(d.quiet, func() { d.fire(key, p) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, p *debounced) {
	d.mu.Lock()
	if d.pending[key] != p {
		// Replaced or flushed after the timer started.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	p.fn(ctx)
}

// take removes and returns the pending function for key.
func (d *Debouncer) take(key string) func(context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		return nil
	}
	p.timer.Stop()
	delete(d.pending, key)
	return p.fn
}

// Flush runs the pending function for key now. Returns false if nothing was
// pending.
func (d *Debouncer) Flush(ctx context.Context, key string) bool {
	fn := d.take(key)
	if fn == nil {
		return false
	}
	fn(ctx)
	return true
}

// Cancel drops the pending function for key without running it.
func (d *Debouncer) Cancel(key string) {
	d.take(key)
}

// Pending reports whether key has a function waiting.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Keys returns the keys with pending work.
func (d *Debouncer) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	return keys
}
