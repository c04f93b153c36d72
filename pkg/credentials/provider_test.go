package credentials

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// countingProvider counts retrievals and shutdowns, delegating retrieval to a
// configurable function.
type countingProvider struct {
	calls     atomic.Int32
	shutdowns atomic.Int32
	retrieve  func(ctx context.Context) (Credentials, error)
}

func (c *countingProvider) Retrieve(ctx context.Context) (Credentials, error) {
	c.calls.Add(1)
	return c.retrieve(ctx)
}

func (c *countingProvider) Shutdown() {
	c.shutdowns.Add(1)
}

func staticCounting(creds Credentials) *countingProvider {
	return &countingProvider{retrieve: func(_ context.Context) (Credentials, error) {
		return creds, nil
	}}
}

// testClock is a mutable clock for deterministic expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
