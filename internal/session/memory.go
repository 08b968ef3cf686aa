// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Save implements Store. The record's ExpiresAt governs expiry; ttl is
// ignored.
func (s *MemoryStore) Save(_ context.Context, key string, rec Record, _ time.Duration) error {
	if key == "" {
		return oops.Code("SESSION_INVALID_KEY").Errorf("session key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok || rec.IsExpiredAt(s.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// DeleteExpired implements Expirer.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for key, rec := range s.records {
		if rec.IsExpiredAt(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Len implements Counter. Expired records not yet swept are included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RunJanitor calls DeleteExpired every interval until ctx is done. Stores
// that implement Counter also report what is left after each sweep.
func RunJanitor(ctx context.Context, store Expirer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				slog.WarnContext(ctx, "session cleanup failed", "error", err)
				continue
			}
			if n == 0 {
				continue
			}
			attrs := []any{"count", n}
			if counter, ok := store.(Counter); ok {
				attrs = append(attrs, "remaining", counter.Len())
			}
			slog.DebugContext(ctx, "expired sessions removed", attrs...)
		}
	}
}
