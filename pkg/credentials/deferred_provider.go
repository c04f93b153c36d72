package credentials

import (
	"context"
	"sync"
)

const DeferredProviderName = "DeferredProvider"

// DeferredProvider wraps an expensive operation that should run exactly once.
// The operation starts in the background at construction time; every Retrieve
// call awaits that same operation and shares its result, success or failure,
// for the life of the provider. A failed operation is never re-attempted.
type DeferredProvider struct {
	build        func(ctx context.Context) (Provider, error)
	shutdownHook func()

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	done     chan struct{}
	provider Provider
	err      error
}

// NewDeferredProvider wraps a source that is retrieved exactly once regardless
// of how many times Retrieve is called. The first result is cached permanently;
// there is no re-fetch, even for expiring credentials.
func NewDeferredProvider(source Provider) *DeferredProvider {
	p := newDeferred(func(ctx context.Context) (Provider, error) {
		creds, err := source.Retrieve(ctx)
		if err != nil {
			return nil, err
		}

		return frozenProvider{creds: creds}, nil
	})
	p.shutdownHook = source.Shutdown

	return p
}

// NewDeferredBuildProvider defers construction of a provider until its
// background operation completes, then delegates every Retrieve to the built
// provider. Unlike NewDeferredProvider, retrieval semantics of the built
// provider are preserved: a built RotatingProvider keeps rotating.
func NewDeferredBuildProvider(build func(ctx context.Context) (Provider, error)) *DeferredProvider {
	return newDeferred(build)
}

func newDeferred(build func(ctx context.Context) (Provider, error)) *DeferredProvider {
	ctx, cancel := context.WithCancel(context.Background())

	p := &DeferredProvider{
		build:  build,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		p.provider, p.err = p.build(p.ctx)
	}()

	return p
}

// Retrieve awaits the single background operation, then returns its result.
func (p *DeferredProvider) Retrieve(ctx context.Context) (Credentials, error) {
	select {
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	case <-p.done:
	}

	if p.err != nil {
		return Credentials{}, p.err
	}

	return p.provider.Retrieve(ctx)
}

// Shutdown cancels the background operation if it is still running and shuts
// down the built provider as well as the wrapped source.
func (p *DeferredProvider) Shutdown() {
	p.once.Do(func() {
		p.cancel()

		<-p.done
		if p.provider != nil {
			p.provider.Shutdown()
		}
		if p.shutdownHook != nil {
			p.shutdownHook()
		}
	})
}

// frozenProvider returns the same credentials forever.
type frozenProvider struct {
	creds Credentials
}

func (f frozenProvider) Retrieve(_ context.Context) (Credentials, error) {
	return f.creds, nil
}

func (f frozenProvider) Shutdown() {}
