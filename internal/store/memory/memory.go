// Package memory is an in-process session store. It stands in for the
// local cache when no Redis address is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/stockcount/internal/session"
)

type entry struct {
	payload []byte
	expires time.Time
}

// Store keeps serialized records in a map. Records are copied in and out
// through JSON so callers never share memory with the store.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	data map[string]entry
}

// New creates a store. A ttl of zero keeps records forever.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]entry),
	}
}

func (s *Store) Get(_ context.Context, key string) (*session.Record, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && s.now().After(e.expires)) {
		return nil, session.ErrNotFound
	}

	var rec session.Record
	if err := json.Unmarshal(e.payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", key, err)
	}
	return &rec, nil
}

func (s *Store) Put(_ context.Context, rec *session.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", rec.Key(), err)
	}

	e := entry{payload: payload}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.data[rec.Key()] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
