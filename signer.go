package awsauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/sigv4"
)

// Signer signs HTTP requests with credentials retrieved from a provider.
type Signer struct {
	// The provider to use for retrieving credentials to sign the request against. Must be
	// provided in order to sign requests.
	Provider credentials.Provider
	// Returns a time value representing the current time. This should only be used
	// for unit testing and omitted otherwise, defaulting to time.Now if not provided or nil.
	timeNowFunc func() time.Time
}

// NewSigner returns a new Signer with the given provider set.
func NewSigner(provider credentials.Provider) *Signer {
	return &Signer{
		Provider: provider,
	}
}

// NewSignerWithTimeNowFunc returns a new Signer with the given provider and a custom function
// for returning the current time set. This should only be used for unit testing, Signer will
// default to the current time if no custom function has been defined.
func NewSignerWithTimeNowFunc(provider credentials.Provider, timeNowFunc func() time.Time) *Signer {
	s := NewSigner(provider)
	s.timeNowFunc = timeNowFunc

	return s
}

// NewSignerWithStaticCredentials returns a new Signer with a static credentials provider set,
// using the given access key ID, secret and optional session token as signing credentials.
func NewSignerWithStaticCredentials(id string, secret string, token string) *Signer {
	return NewSigner(credentials.NewStaticProvider(id, secret, token))
}

// Sign retrieves credentials from the Signer's provider and signs the provided request using
// its body, the requested service and region. Retrieval may suspend on the context while the
// provider refreshes or resolves; a provider failure fails the request with the provider's
// specific error rather than signing with stale values.
//
// Credentials carrying empty keys (the anonymous sentinel) leave the request unsigned.
//
// Sign will modify the request, escaping the host and URL as required and adding headers
// containing signature values. If no error is returned, the request originally provided will
// contain all information necessary and can be executed using standard Go HTTP clients to
// perform the signed request. Should an error be returned instead, discarding the original
// request is advised before attempting to sign it again since it may contain a half-completed
// signature.
func (s *Signer) Sign(ctx context.Context, req *http.Request, body io.ReadSeeker, service string, region string) error {
	creds, err := s.Provider.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieving credentials: %w", err)
	}

	if !creds.HasKeys() {
		return nil
	}

	return sigv4.Sign(req, body, creds, service, region, s.timeNow())
}

// Shutdown shuts down the Signer's provider, cancelling any in-flight
// credential refresh or resolution. It is safe to call multiple times.
func (s *Signer) Shutdown() {
	s.Provider.Shutdown()
}

func (s *Signer) timeNow() time.Time {
	if s.timeNowFunc == nil {
		return time.Now()
	}

	return s.timeNowFunc()
}
