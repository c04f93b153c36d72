package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

const ChainProviderName = "ChainProvider"

var ErrNoValidProvidersFound = errors.New("no valid credential providers found")

const resolveKey = "resolve"

// ChainProvider tries an ordered list of providers, settling permanently on
// the first one that successfully returns credentials. Resolution runs at most
// once: concurrent first calls share a single resolution attempt, candidates
// are tried strictly in order and never in parallel, and once a provider has
// been chosen all other candidates are shut down and released. If every
// candidate fails, the chain fails terminally and every subsequent call
// returns that same failure without retrying.
//
// After resolution, Retrieve is a direct passthrough to the chosen provider,
// so a chosen RotatingProvider keeps its rotation semantics.
type ChainProvider struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu         sync.Mutex
	candidates []Provider
	resolved   Provider
	resolveErr error

	group singleflight.Group
}

// NewChainProvider returns a provider falling back across the given providers
// in order. A list of exactly one provider is returned directly, bypassing the
// resolution wrapper. A nil logger discards resolution events.
func NewChainProvider(providers []Provider, logger *slog.Logger) Provider {
	if len(providers) == 1 {
		return providers[0]
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ChainProvider{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		candidates: append([]Provider{}, providers...),
	}
}

func (p *ChainProvider) Retrieve(ctx context.Context) (Credentials, error) {
	if err := p.ctx.Err(); err != nil {
		return Credentials{}, ErrProviderShutDown
	}

	p.mu.Lock()
	if p.resolveErr != nil {
		err := p.resolveErr
		p.mu.Unlock()

		return Credentials{}, err
	}
	if p.resolved != nil {
		resolved := p.resolved
		p.mu.Unlock()

		return resolved.Retrieve(ctx)
	}
	p.mu.Unlock()

	ch := p.group.DoChan(resolveKey, p.resolve)

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

// Shutdown cancels an in-flight resolution and shuts down the resolved
// provider as well as any remaining candidates.
func (p *ChainProvider) Shutdown() {
	p.once.Do(func() {
		p.cancel()

		p.mu.Lock()
		resolved := p.resolved
		candidates := p.candidates
		p.candidates = nil
		p.mu.Unlock()

		if resolved != nil {
			resolved.Shutdown()
		}
		for _, c := range candidates {
			c.Shutdown()
		}
	})
}

func (p *ChainProvider) resolve() (interface{}, error) {
	p.mu.Lock()
	if p.resolveErr != nil {
		err := p.resolveErr
		p.mu.Unlock()

		return nil, err
	}
	if p.resolved != nil {
		resolved := p.resolved
		p.mu.Unlock()

		return resolved.Retrieve(p.ctx)
	}
	candidates := p.candidates
	p.mu.Unlock()

	var errs []error
	for i, candidate := range candidates {
		creds, err := candidate.Retrieve(p.ctx)
		if err != nil {
			p.logger.Debug("credential provider not available", "index", i, "error", err)
			errs = append(errs, err)

			continue
		}

		p.mu.Lock()
		p.resolved = candidate
		p.candidates = nil
		p.mu.Unlock()

		for j, other := range candidates {
			if j != i {
				other.Shutdown()
			}
		}

		p.logger.Debug("credential provider selected", "index", i, "provider", creds.ProviderName)

		return creds, nil
	}

	err := fmt.Errorf("%w: %v", ErrNoValidProvidersFound, errors.Join(errs...))

	p.mu.Lock()
	p.resolveErr = err
	p.candidates = nil
	p.mu.Unlock()

	for _, candidate := range candidates {
		candidate.Shutdown()
	}

	return nil, err
}
