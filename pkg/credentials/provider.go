package credentials

import (
	"context"
	"os"
)

// Provider is the interface for any component retrieving credentials.
//
// Retrieve performs a single attempt at obtaining credentials. Sources never
// retry or cache on their own; retry and caching policy is layered on top by
// the RotatingProvider, DeferredProvider and ChainProvider wrappers.
//
// Shutdown releases any resources held by the provider and cancels in-flight
// retrievals. It is idempotent and propagates to wrapped providers.
type Provider interface {
	Retrieve(ctx context.Context) (Credentials, error)
	Shutdown()
}

// ProviderFunc adapts a plain retrieval function to the Provider interface
// with a no-op Shutdown.
type ProviderFunc func(ctx context.Context) (Credentials, error)

func (f ProviderFunc) Retrieve(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

func (f ProviderFunc) Shutdown() {}

// LookupEnvFunc looks up an environment variable, reporting whether it is set.
// Providers consult the process environment through this indirection so tests
// can supply a deterministic environment. A nil LookupEnvFunc means os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// Lookup invokes the function, falling back to os.LookupEnv if it is nil.
func (f LookupEnvFunc) Lookup(key string) (string, bool) {
	if f == nil {
		return os.LookupEnv(key)
	}

	return f(key)
}
