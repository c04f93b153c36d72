package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredProviderRetrievesExactlyOnce(t *testing.T) {
	source := staticCounting(Credentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		ProviderName:    "test",
	})

	provider := NewDeferredProvider(source)
	defer provider.Shutdown()

	for i := 0; i < 3; i++ {
		creds, err := provider.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "AKID", creds.AccessKeyID)
	}

	assert.EqualValues(t, 1, source.calls.Load())
}

func TestDeferredProviderCachesExpiringResultPermanently(t *testing.T) {
	source := staticCounting(Credentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		CanExpire:       true,
		Expires:         time.Now().Add(time.Millisecond),
	})

	provider := NewDeferredProvider(source)
	defer provider.Shutdown()

	_, err := provider.Retrieve(context.Background())
	require.NoError(t, err)

	// Expiry of the cached value does not trigger a re-fetch.
	time.Sleep(5 * time.Millisecond)

	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.EqualValues(t, 1, source.calls.Load())
}

func TestDeferredProviderCachesFailure(t *testing.T) {
	errRetrieve := errors.New("source unavailable")

	source := &countingProvider{}
	source.retrieve = func(_ context.Context) (Credentials, error) {
		return Credentials{}, errRetrieve
	}

	provider := NewDeferredProvider(source)
	defer provider.Shutdown()

	for i := 0; i < 3; i++ {
		_, err := provider.Retrieve(context.Background())
		require.ErrorIs(t, err, errRetrieve)
	}

	assert.EqualValues(t, 1, source.calls.Load())
}

func TestDeferredProviderConcurrentCallersShareRetrieval(t *testing.T) {
	release := make(chan struct{})

	source := &countingProvider{}
	source.retrieve = func(_ context.Context) (Credentials, error) {
		<-release

		return Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
	}

	provider := NewDeferredProvider(source)
	defer provider.Shutdown()

	const callers = 10

	done := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := provider.Retrieve(context.Background())
			done <- err
		}()
	}

	close(release)
	for i := 0; i < callers; i++ {
		require.NoError(t, <-done)
	}

	assert.EqualValues(t, 1, source.calls.Load())
}

func TestDeferredProviderCallerContextCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	source := &countingProvider{}
	source.retrieve = func(ctx context.Context) (Credentials, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}

		return Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
	}

	provider := NewDeferredProvider(source)
	defer provider.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Retrieve(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeferredBuildProviderDelegatesRetrieval(t *testing.T) {
	source := staticCounting(Credentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
	})

	builds := 0
	provider := NewDeferredBuildProvider(func(_ context.Context) (Provider, error) {
		builds++

		return source, nil
	})
	defer provider.Shutdown()

	for i := 0; i < 3; i++ {
		creds, err := provider.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "AKID", creds.AccessKeyID)
	}

	// The build ran once while every retrieval reached the built provider.
	assert.Equal(t, 1, builds)
	assert.EqualValues(t, 3, source.calls.Load())
}
