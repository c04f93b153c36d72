// Package ecscreds retrieves time-limited credentials from the container
// credentials endpoint exposed to ECS tasks with a task role.
//
// The endpoint is only consulted if AWS_CONTAINER_CREDENTIALS_RELATIVE_URI is
// present in the environment. Retrievals are one-shot; callers wrap the
// provider in a credentials.RotatingProvider for caching and refresh.
package ecscreds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/allaboutapps/awsauth/pkg/credentials"
)

const ProviderName = "ECSCredentialsProvider"

// EnvRelativeURI holds the path of the task's credentials below the fixed
// link-local container credentials host.
const EnvRelativeURI = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"

const defaultEndpoint = "http://169.254.170.2"

var (
	ErrNoContainerCredentials      = errors.New("AWS_CONTAINER_CREDENTIALS_RELATIVE_URI not found in environment")
	ErrMissingCredentialDocument   = errors.New("container credentials document is missing required fields")
	ErrUnexpectedCredentialsStatus = errors.New("unexpected status from container credentials endpoint")
)

// Provider retrieves credentials from the container metadata endpoint.
type Provider struct {
	client      *http.Client
	endpoint    string
	relativeURI string
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for endpoint requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithEndpoint overrides the container credentials host, mainly for testing.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// New returns a container credentials provider, or ErrNoContainerCredentials
// if the environment does not carry a relative credentials URI.
func New(lookupEnv credentials.LookupEnvFunc, opts ...Option) (*Provider, error) {
	uri, ok := lookupEnv.Lookup(EnvRelativeURI)
	if !ok || len(uri) == 0 {
		return nil, ErrNoContainerCredentials
	}

	p := &Provider{
		endpoint:    defaultEndpoint,
		relativeURI: uri,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = http.DefaultClient
	}

	return p, nil
}

func (p *Provider) Retrieve(ctx context.Context) (credentials.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+p.relativeURI, nil)
	if err != nil {
		return credentials.Credentials{}, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("requesting container credentials: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return credentials.Credentials{}, fmt.Errorf("%w: %d", ErrUnexpectedCredentialsStatus, res.StatusCode)
	}

	var doc struct {
		AccessKeyID     string    `json:"AccessKeyId"`
		SecretAccessKey string    `json:"SecretAccessKey"`
		Token           string    `json:"Token"`
		Expiration      time.Time `json:"Expiration"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return credentials.Credentials{}, fmt.Errorf("decoding container credentials: %w", err)
	}

	if len(doc.AccessKeyID) == 0 || len(doc.SecretAccessKey) == 0 {
		return credentials.Credentials{}, ErrMissingCredentialDocument
	}

	return credentials.Credentials{
		AccessKeyID:     doc.AccessKeyID,
		SecretAccessKey: doc.SecretAccessKey,
		SessionToken:    doc.Token,
		ProviderName:    ProviderName,
		CanExpire:       true,
		Expires:         doc.Expiration,
	}, nil
}

func (p *Provider) Shutdown() {}
