package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no record exists for a key.
var ErrNotFound = errors.New("session not found")

// Store persists records keyed by operator email.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, key string) error
}

// PersistenceError wraps a failed store operation. It is logged and
// reported through the save status, never returned to operators.
type PersistenceError struct {
	Store Source
	Op    string
	Key   string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session %s %s %q: %v", e.Store, e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
