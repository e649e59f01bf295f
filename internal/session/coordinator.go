package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Defaults for Options fields left zero.
const (
	DefaultQuietPeriod  = 2 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Options configures a Coordinator.
type Options struct {
	QuietPeriod  time.Duration // Remote write debounce window
	WriteTimeout time.Duration // Bound on timer-triggered remote writes
	Logger       *slog.Logger

	// OnFailure is called for every failed store operation.
	OnFailure func(store Source, op string)
}

// SaveStatus is the persistence state of one session, suitable for a
// non-blocking "unsaved changes" indicator.
type SaveStatus struct {
	Pending     bool       `json:"pending"`
	Unsaved     bool       `json:"unsaved"`
	LastError   string     `json:"last_error,omitempty"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
}

// keyState tracks one session. The two stores fail independently, so each
// keeps its own newest unwritten snapshot and last error.
type keyState struct {
	seq uint64 // Bumped on every Save and Clear

	written   uint64 // Highest seq durably written to the remote store
	retry     *Record
	retrySeq  uint64
	remoteErr string
	lastSaved *time.Time

	localWritten uint64 // Highest seq written to the local store
	localRetry   *Record
	localSeq     uint64
	localErr     string
}

// Coordinator keeps the local and remote stores in step.
type Coordinator struct {
	local    Store
	remote   Store
	debounce *Debouncer
	logger   *slog.Logger
	onFail   func(Source, string)

	mu     sync.Mutex
	states map[string]*keyState

	// localMu and writeMu serialize writes and deletes per store so an
	// older snapshot never lands after a newer one. Neither is held while
	// acquiring the other.
	localMu sync.Mutex
	writeMu sync.Mutex
}

// NewCoordinator creates a coordinator over the two stores.
func NewCoordinator(local, remote Store, opts Options) *Coordinator {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OnFailure == nil {
		opts.OnFailure = func(Source, string) {}
	}

	return &Coordinator{
		local:    local,
		remote:   remote,
		debounce: NewDebouncer(opts.QuietPeriod, opts.WriteTimeout),
		logger:   opts.Logger,
		onFail:   opts.OnFailure,
		states:   make(map[string]*keyState),
	}
}

// state returns the bookkeeping for key. Callers hold c.mu.
func (c *Coordinator) state(key string) *keyState {
	ks, ok := c.states[key]
	if !ok {
		ks = &keyState{}
		c.states[key] = ks
	}
	return ks
}

func (c *Coordinator) storeFor(src Source) Store {
	if src == SourceLocal {
		return c.local
	}
	return c.remote
}

func (c *Coordinator) fail(src Source, op, key string, err error) error {
	perr := &PersistenceError{Store: src, Op: op, Key: key, Err: err}
	c.logger.Error("session persistence failed",
		"store", string(src),
		"op", op,
		"user_email", key,
		"error", err,
	)
	c.onFail(src, op)
	return perr
}

// read fetches key from one store. Errors are logged and treated as absent.
func (c *Coordinator) read(ctx context.Context, src Source, key string) *Record {
	rec, err := c.storeFor(src).Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.fail(src, "get", key, err)
		}
		return nil
	}
	return rec
}

// Load reads both stores and returns the preferred restorable record. The
// winner is copied verbatim to the other store when that store's copy
// differs, so repeating a load performs no writes.
func (c *Coordinator) Load(ctx context.Context, key string) (*Record, bool) {
	local := c.read(ctx, SourceLocal, key)
	remote := c.read(ctx, SourceRemote, key)

	for _, cand := range Resolve(local, remote) {
		if !cand.Record.Restorable() {
			continue
		}

		other, otherSrc := remote, SourceRemote
		if cand.Source == SourceRemote {
			other, otherSrc = local, SourceLocal
		}
		if !sameRecord(cand.Record, other) {
			c.propagate(ctx, otherSrc, cand.Record)
		}

		c.logger.Info("session restored",
			"user_email", key,
			"source", string(cand.Source),
			"progress", ProgressScore(cand.Record),
		)
		return cand.Record, true
	}

	return nil, false
}

func (c *Coordinator) propagate(ctx context.Context, dst Source, rec *Record) {
	if dst == SourceRemote {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
	} else {
		c.localMu.Lock()
		defer c.localMu.Unlock()
	}

	if err := c.storeFor(dst).Put(ctx, rec); err != nil {
		c.fail(dst, "propagate", rec.Key(), err)
		return
	}
	c.logger.Debug("session propagated", "user_email", rec.Key(), "to", string(dst))
}

// sameRecord compares the serialized forms, which is what the stores hold.
func sameRecord(a, b *Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Save writes rec to the local store now and schedules the remote write.
// Failures are recorded in the save status; a failed local write is
// superseded by the next Save and retried by Flush.
func (c *Coordinator) Save(ctx context.Context, rec *Record) {
	key := rec.Key()

	c.mu.Lock()
	ks := c.state(key)
	ks.seq++
	seq := ks.seq
	c.mu.Unlock()

	_ = c.writeLocal(ctx, rec, seq)

	c.debounce.Schedule(key, func(ctx context.Context) {
		_ = c.writeRemote(ctx, rec, seq)
	})
}

func (c *Coordinator) writeLocal(ctx context.Context, rec *Record, seq uint64) error {
	key := rec.Key()

	c.localMu.Lock()
	defer c.localMu.Unlock()

	c.mu.Lock()
	ks := c.state(key)
	if seq <= ks.localWritten {
		if ks.localSeq <= ks.localWritten {
			ks.localRetry, ks.localSeq = nil, 0
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.local.Put(ctx, rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		err = c.fail(SourceLocal, "put", key, err)
		ks.localErr = err.Error()
		if seq >= ks.localSeq {
			ks.localRetry, ks.localSeq = rec, seq
		}
		return err
	}

	ks.localWritten = seq
	if ks.localSeq <= seq {
		ks.localRetry, ks.localSeq = nil, 0
		ks.localErr = ""
	}
	return nil
}

func (c *Coordinator) writeRemote(ctx context.Context, rec *Record, seq uint64) error {
	key := rec.Key()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ks := c.state(key)
	if seq <= ks.written {
		if ks.retrySeq <= ks.written {
			ks.retry, ks.retrySeq = nil, 0
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.remote.Put(ctx, rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		err = c.fail(SourceRemote, "put", key, err)
		ks.remoteErr = err.Error()
		if seq >= ks.retrySeq {
			ks.retry, ks.retrySeq = rec, seq
		}
		return err
	}

	now := time.Now().UTC()
	ks.written = seq
	ks.lastSaved = &now
	if ks.retrySeq <= seq {
		ks.retry, ks.retrySeq = nil, 0
		ks.remoteErr = ""
	}
	return nil
}

// Flush performs the pending remote write for key now. Writes that failed
// earlier, local or remote, are retried with the newest snapshot that failed
// on that store.
func (c *Coordinator) Flush(ctx context.Context, key string) error {
	c.debounce.Flush(ctx, key)

	c.mu.Lock()
	ks := c.state(key)
	localRetry, localSeq := ks.localRetry, ks.localSeq
	retry, seq := ks.retry, ks.retrySeq
	c.mu.Unlock()

	var errs []error
	if localRetry != nil {
		if err := c.writeLocal(ctx, localRetry, localSeq); err != nil {
			errs = append(errs, err)
		}
	}
	if retry != nil {
		if err := c.writeRemote(ctx, retry, seq); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushAll flushes every session with pending or failed writes.
func (c *Coordinator) FlushAll(ctx context.Context) error {
	keys := map[string]struct{}{}
	for _, k := range c.debounce.Keys() {
		keys[k] = struct{}{}
	}
	c.mu.Lock()
	for k, ks := range c.states {
		if ks.retry != nil || ks.localRetry != nil {
			keys[k] = struct{}{}
		}
	}
	c.mu.Unlock()

	var errs []error
	for k := range keys {
		if err := c.Flush(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear drops any pending write for key and deletes it from both stores.
func (c *Coordinator) Clear(ctx context.Context, key string) error {
	c.debounce.Cancel(key)

	c.localMu.Lock()
	c.mu.Lock()
	ks := c.state(key)
	ks.seq++
	seq := ks.seq
	ks.localWritten = seq
	ks.localRetry, ks.localSeq = nil, 0
	c.mu.Unlock()

	localErr := c.local.Delete(ctx, key)
	c.localMu.Unlock()
	if localErr != nil && !errors.Is(localErr, ErrNotFound) {
		localErr = c.fail(SourceLocal, "delete", key, localErr)
	} else {
		localErr = nil
	}

	c.writeMu.Lock()
	c.mu.Lock()
	if ks.written < seq {
		ks.written = seq
	}
	ks.retry, ks.retrySeq = nil, 0
	c.mu.Unlock()

	remoteErr := c.remote.Delete(ctx, key)
	c.writeMu.Unlock()
	if remoteErr != nil && !errors.Is(remoteErr, ErrNotFound) {
		remoteErr = c.fail(SourceRemote, "delete", key, remoteErr)
	} else {
		remoteErr = nil
	}

	c.mu.Lock()
	ks.localErr, ks.remoteErr = errString(localErr), errString(remoteErr)
	c.mu.Unlock()

	return errors.Join(localErr, remoteErr)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Status reports the persistence state of key.
func (c *Coordinator) Status(key string) SaveStatus {
	pending := c.debounce.Pending(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	ks, ok := c.states[key]
	if !ok {
		return SaveStatus{Pending: pending}
	}
	lastErr := ks.localErr
	if ks.remoteErr != "" {
		if lastErr != "" {
			lastErr += "; "
		}
		lastErr += ks.remoteErr
	}
	return SaveStatus{
		Pending:     pending || ks.retry != nil || ks.localRetry != nil,
		Unsaved:     lastErr != "",
		LastError:   lastErr,
		LastSavedAt: ks.lastSaved,
	}
}
