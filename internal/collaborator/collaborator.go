// Package collaborator is an illustrative external dependency: a lookup
// service whose calls block the calling goroutine, standing in for a real
// network/database client. It exists to exercise asyncloop.Loop.Promisify,
// the seam the loop uses to bridge blocking Go code into its Promise model
// without ever blocking the loop goroutine itself.
package collaborator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-asyncloop/asyncloop"
)

// Store is a blocking key/value lookup service. Production code would swap
// this for an HTTP client, a SQL driver or similar; Get's only contract is
// that it blocks the calling goroutine until it has an answer (or ctx is
// cancelled).
type Store struct {
	mu      sync.Mutex
	data    map[string]string
	latency time.Duration
}

// NewStore returns a Store that answers Get after simulating latency.
func NewStore(latency time.Duration) *Store {
	return &Store{data: make(map[string]string), latency: latency}
}

// Put seeds a key's value.
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get blocks for the store's configured latency (or until ctx is done,
// whichever comes first) and returns key's value.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	v, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("collaborator: key %q not found", key)
	}
	return v, nil
}

// FetchAsync bridges Store.Get into loop's Promise model via Promisify, so
// callers already running inside a Task can Await it without the loop
// goroutine ever blocking on the store's latency.
func FetchAsync(loop *asyncloop.Loop, store *Store, key string) *asyncloop.Chained {
	return loop.Promisify(context.Background(), func(ctx context.Context) (asyncloop.Result, error) {
		return store.Get(ctx, key)
	})
}
