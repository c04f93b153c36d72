// Package ec2creds retrieves time-limited credentials from the EC2 instance
// metadata service (IMDS).
//
// Retrieval attempts the IMDSv2 session-token handshake first and silently
// falls back to IMDSv1 (no token header) if the token request fails for any
// reason. The endpoint is link-local and only reachable from within an
// instance, so all requests run with a short fixed timeout. Retrievals are
// one-shot; callers wrap the provider in a credentials.RotatingProvider for
// caching and refresh.
package ec2creds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/allaboutapps/awsauth/pkg/credentials"
)

const ProviderName = "EC2RoleCredentialsProvider"

const (
	defaultEndpoint = "http://169.254.169.254"
	defaultTimeout  = 2 * time.Second

	tokenPath       = "/latest/api/token"
	credentialsPath = "/latest/meta-data/iam/security-credentials/"

	tokenHeader    = "X-aws-ec2-metadata-token"
	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
	tokenTTL       = "21600"
)

var (
	ErrMissingRoleName           = errors.New("no IAM role name found in instance metadata")
	ErrMissingCredentialDocument = errors.New("instance credentials document is missing required fields")
	ErrUnexpectedMetadataStatus  = errors.New("unexpected status from instance metadata endpoint")
)

// Provider retrieves credentials for the instance's IAM role from IMDS.
type Provider struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for metadata requests. The default
// client enforces the short metadata timeout; custom clients should set their
// own.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithEndpoint overrides the instance metadata host, mainly for testing.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithLogger sets the logger used for metadata events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func New(opts ...Option) *Provider {
	p := &Provider{
		endpoint: defaultEndpoint,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = &http.Client{Timeout: defaultTimeout}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return p
}

func (p *Provider) Retrieve(ctx context.Context) (credentials.Credentials, error) {
	token := p.fetchToken(ctx)

	role, err := p.fetchRoleName(ctx, token)
	if err != nil {
		return credentials.Credentials{}, err
	}

	return p.fetchCredentials(ctx, token, role)
}

func (p *Provider) Shutdown() {}

// fetchToken attempts the IMDSv2 session-token handshake. Any failure returns
// an empty token, causing subsequent requests to run IMDSv1-style without a
// token header.
func (p *Provider) fetchToken(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.endpoint+tokenPath, nil)
	if err != nil {
		return ""
	}
	req.Header.Set(tokenTTLHeader, tokenTTL)

	res, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("metadata token request failed, falling back to IMDSv1", "error", err)

		return ""
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		p.logger.Debug("metadata token request rejected, falling back to IMDSv1", "status", res.StatusCode)

		return ""
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(body))
}

func (p *Provider) fetchRoleName(ctx context.Context, token string) (string, error) {
	body, err := p.get(ctx, credentialsPath, token)
	if err != nil {
		return "", fmt.Errorf("requesting role name: %w", err)
	}

	// The endpoint lists one role name per line; an instance has exactly one
	// role attached, so only the first line matters.
	role, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	if len(role) == 0 {
		return "", ErrMissingRoleName
	}

	return role, nil
}

func (p *Provider) fetchCredentials(ctx context.Context, token string, role string) (credentials.Credentials, error) {
	body, err := p.get(ctx, credentialsPath+role, token)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("requesting credentials for role %q: %w", role, err)
	}

	var doc struct {
		Code            string    `json:"Code"`
		AccessKeyID     string    `json:"AccessKeyId"`
		SecretAccessKey string    `json:"SecretAccessKey"`
		Token           string    `json:"Token"`
		Expiration      time.Time `json:"Expiration"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return credentials.Credentials{}, fmt.Errorf("decoding instance credentials: %w", err)
	}

	if len(doc.Code) > 0 && doc.Code != "Success" {
		return credentials.Credentials{}, fmt.Errorf("instance credentials document returned code %q", doc.Code)
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

func (p *Provider) get(ctx context.Context, path string, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	if len(token) > 0 {
		req.Header.Set(tokenHeader, token)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedMetadataStatus, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}
