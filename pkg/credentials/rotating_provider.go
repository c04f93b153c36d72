package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const RotatingProviderName = "RotatingProvider"

const (
	// DefaultRefreshWindow is how long before expiry cached credentials are
	// proactively refreshed.
	DefaultRefreshWindow = 3 * time.Minute
	// DefaultExpiryWindow is the safety margin subtracted from the reported
	// expiration so credentials are never handed out that would expire while
	// the request signed with them is still in flight.
	DefaultExpiryWindow = 15 * time.Second
)

var ErrProviderShutDown = errors.New("credential provider has been shut down")

const refreshKey = "refresh"

// RotatingProvider wraps a source returning possibly expiring credentials,
// caching the last retrieved value and refreshing it ahead of expiry.
//
// Concurrent refreshes are collapsed into a single retrieval of the wrapped
// source: callers arriving while a refresh is in flight attach to that flight
// and all receive its result. A failed refresh leaves the cache empty so the
// next call retries. Non-expiring credentials are cached forever.
type RotatingProvider struct {
	source Provider
	logger *slog.Logger

	refreshWindow time.Duration
	expiryWindow  time.Duration
	timeNowFunc   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu         sync.Mutex
	cached     Credentials
	hasCached  bool
	validUntil time.Time // zero for non-expiring credentials

	group singleflight.Group
}

// RotatingOption configures a RotatingProvider.
type RotatingOption func(*RotatingProvider)

// WithRefreshWindow sets how long before expiry a refresh is triggered.
func WithRefreshWindow(window time.Duration) RotatingOption {
	return func(p *RotatingProvider) {
		p.refreshWindow = window
	}
}

// WithExpiryWindow sets the safety margin subtracted from the expiration.
func WithExpiryWindow(window time.Duration) RotatingOption {
	return func(p *RotatingProvider) {
		p.expiryWindow = window
	}
}

// WithLogger sets the logger used for refresh events.
func WithLogger(logger *slog.Logger) RotatingOption {
	return func(p *RotatingProvider) {
		p.logger = logger
	}
}

// WithTimeNowFunc sets a custom function returning the current time. This
// should only be used for unit testing and omitted otherwise, defaulting to
// time.Now if not provided or nil.
func WithTimeNowFunc(timeNowFunc func() time.Time) RotatingOption {
	return func(p *RotatingProvider) {
		p.timeNowFunc = timeNowFunc
	}
}

func NewRotatingProvider(source Provider, opts ...RotatingOption) *RotatingProvider {
	ctx, cancel := context.WithCancel(context.Background())

	p := &RotatingProvider{
		source:        source,
		refreshWindow: DefaultRefreshWindow,
		expiryWindow:  DefaultExpiryWindow,
		timeNowFunc:   time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.timeNowFunc == nil {
		p.timeNowFunc = time.Now
	}

	return p
}

// Retrieve returns the cached credentials if they are not due for a refresh,
// otherwise it refreshes them from the wrapped source. If a refresh is already
// in flight the caller awaits that same flight instead of starting another.
//
// The caller's context only controls how long the caller waits; the refresh
// itself runs on the provider's lifetime context and is cancelled by Shutdown.
func (p *RotatingProvider) Retrieve(ctx context.Context) (Credentials, error) {
	if err := p.ctx.Err(); err != nil {
		return Credentials{}, ErrProviderShutDown
	}

	p.mu.Lock()
	if p.fresh(p.timeNowFunc()) {
		creds := p.cached
		p.mu.Unlock()

		return creds, nil
	}
	p.mu.Unlock()

	ch := p.group.DoChan(refreshKey, p.refresh)

	select {
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	case <-p.ctx.Done():
		return Credentials{}, ErrProviderShutDown
	case res := <-ch:
		if res.Err != nil {
			return Credentials{}, res.Err
		}

		return res.Val.(Credentials), nil
	}
}

// Shutdown cancels any in-flight refresh and shuts down the wrapped source.
// It is safe to call multiple times.
func (p *RotatingProvider) Shutdown() {
	p.once.Do(func() {
		p.cancel()
		p.source.Shutdown()
	})
}

// fresh reports whether the cached credentials can be returned without a
// refresh. Callers must hold p.mu.
func (p *RotatingProvider) fresh(now time.Time) bool {
	if !p.hasCached {
		return false
	}

	if p.validUntil.IsZero() {
		// non-expiring credentials never refresh
		return true
	}

	return now.Before(p.validUntil.Add(-p.refreshWindow))
}

func (p *RotatingProvider) refresh() (interface{}, error) {
	// A flight that completed between the caller's staleness check and its
	// DoChan call already filled the cache; do not fetch again.
	p.mu.Lock()
	if p.fresh(p.timeNowFunc()) {
		creds := p.cached
		p.mu.Unlock()

		return creds, nil
	}
	p.mu.Unlock()

	p.logger.Debug("refreshing credentials")

	creds, err := p.source.Retrieve(p.ctx)
	if err != nil {
		p.logger.Warn("credential refresh failed", "error", err)

		return nil, err
	}

	var validUntil time.Time
	if creds.CanExpire {
		validUntil = creds.Expires.Add(-p.expiryWindow)
	}

	p.mu.Lock()
	p.cached = creds
	p.hasCached = true
	p.validUntil = validUntil
	p.mu.Unlock()

	p.logger.Debug("credentials refreshed", "provider", creds.ProviderName, "canExpire", creds.CanExpire)

	return creds, nil
}
