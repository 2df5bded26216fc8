package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Cache keys are semantic identifiers, not URLs.
const (
	KeyAssignments = "judging:assignments"
)

func KeyCompetitionSubmissions(competitionID int64) string {
	return fmt.Sprintf("competition:%d:submissions", competitionID)
}

func KeySubmission(submissionID int64) string {
	return fmt.Sprintf("submission:%d", submissionID)
}

var ErrNoFetcher = errors.New("no fetcher registered for key")

// Fetcher loads the fresh value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Cache memoizes fetched values per semantic key. Invalidation refetches,
// it does not merely evict, so readers after a mutation always see the
// server's view.
type Cache struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
	values   map[string]any
}

func New() *Cache {
	return &Cache{
		fetchers: make(map[string]Fetcher),
		values:   make(map[string]any),
	}
}

// Register binds a fetcher to a key. Later registrations replace earlier ones.
func (c *Cache) Register(key string, f Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = f
}

// Get returns the cached value, fetching on a miss.
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	c.mu.RLock()
	if v, ok := c.values[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	f, ok := c.fetchers[key]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFetcher, key)
	}

	v, err := f(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
	return v, nil
}

// Invalidate refetches every named key in parallel and joins before
// returning. Callers must not report success until it does. Keys without a
// registered fetcher are simply evicted.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		c.mu.Lock()
		delete(c.values, key)
		f, ok := c.fetchers[key]
		c.mu.Unlock()
		if !ok {
			continue
		}
		key := key
		g.Go(func() error {
			v, err := f(ctx)
			if err != nil {
				return fmt.Errorf("refetch %s: %w", key, err)
			}
			c.mu.Lock()
			c.values[key] = v
			c.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Purge drops all cached values. Fetcher registrations survive.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}

// Peek reports the cached value without triggering a fetch.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}
