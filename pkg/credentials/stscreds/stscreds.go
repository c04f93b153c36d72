// Package stscreds retrieves time-limited credentials from AWS STS using the
// query protocol, either by assuming a role with a separately supplied set of
// base credentials or by exchanging a web identity token read from a local
// file.
//
// Retrievals are one-shot; callers wrap the providers in a
// credentials.RotatingProvider for caching and refresh.
package stscreds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/sigv4"
)

const (
	AssumeRoleProviderName  = "STSAssumeRoleProvider"
	WebIdentityProviderName = "STSWebIdentityProvider"
)

const (
	stsService = "sts"
	stsVersion = "2011-06-15"

	// DefaultDuration is the requested lifetime of assumed credentials.
	DefaultDuration = time.Hour
)

// TokenFileError reports that a web identity token file could not be loaded.
// It is kept distinct from network and auth errors so a bad local file reads
// differently from an unreachable or rejecting endpoint.
type TokenFileError struct {
	Path string
	Err  error
}

func (e *TokenFileError) Error() string {
	return fmt.Sprintf("web identity token file %q failed to load: %v", e.Path, e.Err)
}

func (e *TokenFileError) Unwrap() error {
	return e.Err
}

// AssumeRoleProvider assumes an IAM role via STS, signing the request with
// credentials obtained from a separately supplied base provider.
type AssumeRoleProvider struct {
	client      *http.Client
	base        credentials.Provider
	roleARN     string
	sessionName string
	region      string
	endpoint    string
	duration    time.Duration
	timeNowFunc func() time.Time
}

// Option configures an AssumeRoleProvider or WebIdentityProvider.
type Option func(*options)

type options struct {
	client      *http.Client
	endpoint    string
	duration    time.Duration
	timeNowFunc func() time.Time
}

// WithHTTPClient sets the HTTP client used for STS requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithEndpoint overrides the STS endpoint, for testing or VPC endpoints.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithDuration sets the requested lifetime of the assumed credentials.
func WithDuration(duration time.Duration) Option {
	return func(o *options) {
		o.duration = duration
	}
}

// WithTimeNowFunc sets a custom function returning the current time, used as
// the signing time. This should only be used for unit testing.
func WithTimeNowFunc(timeNowFunc func() time.Time) Option {
	return func(o *options) {
		o.timeNowFunc = timeNowFunc
	}
}

func applyOptions(region string, opts []Option) options {
	o := options{
		endpoint:    fmt.Sprintf("https://sts.%s.amazonaws.com", region),
		duration:    DefaultDuration,
		timeNowFunc: time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.timeNowFunc == nil {
		o.timeNowFunc = time.Now
	}

	return o
}

// NewAssumeRoleProvider returns a provider assuming the given role, using base
// as the source of the credentials that sign the STS request.
func NewAssumeRoleProvider(base credentials.Provider, roleARN string, sessionName string, region string, opts ...Option) *AssumeRoleProvider {
	o := applyOptions(region, opts)

	return &AssumeRoleProvider{
		client:      o.client,
		base:        base,
		roleARN:     roleARN,
		sessionName: sessionName,
		region:      region,
		endpoint:    o.endpoint,
		duration:    o.duration,
		timeNowFunc: o.timeNowFunc,
	}
}

func (p *AssumeRoleProvider) Retrieve(ctx context.Context) (credentials.Credentials, error) {
	baseCreds, err := p.base.Retrieve(ctx)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("retrieving base credentials: %w", err)
	}

	form := url.Values{
		"Action":          {"AssumeRole"},
		"Version":         {stsVersion},
		"RoleArn":         {p.roleARN},
		"RoleSessionName": {p.sessionName},
		"DurationSeconds": {strconv.Itoa(int(p.duration / time.Second))},
	}

	var res assumeRoleResponse
	if err := p.post(ctx, form, &baseCreds, &res); err != nil {
		return credentials.Credentials{}, err
	}

	return res.Result.Credentials.toCredentials(AssumeRoleProviderName)
}

func (p *AssumeRoleProvider) Shutdown() {
	p.base.Shutdown()
}

func (p *AssumeRoleProvider) post(ctx context.Context, form url.Values, signWith *credentials.Credentials, out interface{}) error {
	body := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	if signWith != nil && signWith.HasKeys() {
		if err := sigv4.Sign(req, strings.NewReader(body), *signWith, stsService, p.region, p.timeNowFunc()); err != nil {
			return fmt.Errorf("signing STS request: %w", err)
		}
	}

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting STS credentials: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading STS response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from STS: %s", res.StatusCode, strings.TrimSpace(string(resBody)))
	}

	if err := xml.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("decoding STS response: %w", err)
	}

	return nil
}

// WebIdentityProvider exchanges a web identity bearer token, read from a local
// file, for role credentials. The STS call is unsigned.
type WebIdentityProvider struct {
	sts       *AssumeRoleProvider
	tokenFile string
}

// NewWebIdentityProvider returns a provider assuming the given role with the
// token found at tokenFile.
func NewWebIdentityProvider(tokenFile string, roleARN string, sessionName string, region string, opts ...Option) *WebIdentityProvider {
	return &WebIdentityProvider{
		sts:       NewAssumeRoleProvider(credentials.NewEmptyProvider(), roleARN, sessionName, region, opts...),
		tokenFile: tokenFile,
	}
}

func (p *WebIdentityProvider) Retrieve(ctx context.Context) (credentials.Credentials, error) {
	token, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return credentials.Credentials{}, &TokenFileError{Path: p.tokenFile, Err: err}
	}

	form := url.Values{
		"Action":           {"AssumeRoleWithWebIdentity"},
		"Version":          {stsVersion},
		"RoleArn":          {p.sts.roleARN},
		"RoleSessionName":  {p.sts.sessionName},
		"WebIdentityToken": {strings.TrimSpace(string(token))},
		"DurationSeconds":  {strconv.Itoa(int(p.sts.duration / time.Second))},
	}

	var res webIdentityResponse
	if err := p.sts.post(ctx, form, nil, &res); err != nil {
		return credentials.Credentials{}, err
	}

	return res.Result.Credentials.toCredentials(WebIdentityProviderName)
}

func (p *WebIdentityProvider) Shutdown() {
	p.sts.Shutdown()
}

type assumeRoleResponse struct {
	XMLName xml.Name         `xml:"AssumeRoleResponse"`
	Result  assumeRoleResult `xml:"AssumeRoleResult"`
}

type webIdentityResponse struct {
	XMLName xml.Name         `xml:"AssumeRoleWithWebIdentityResponse"`
	Result  assumeRoleResult `xml:"AssumeRoleWithWebIdentityResult"`
}

type assumeRoleResult struct {
	Credentials stsCredentials `xml:"Credentials"`
}

type stsCredentials struct {
	AccessKeyID     string    `xml:"AccessKeyId"`
	SecretAccessKey string    `xml:"SecretAccessKey"`
	SessionToken    string    `xml:"SessionToken"`
	Expiration      time.Time `xml:"Expiration"`
}

func (c stsCredentials) toCredentials(providerName string) (credentials.Credentials, error) {
	if len(c.AccessKeyID) == 0 || len(c.SecretAccessKey) == 0 {
		return credentials.Credentials{}, fmt.Errorf("STS response is missing credentials")
	}

	return credentials.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		ProviderName:    providerName,
		CanExpire:       true,
		Expires:         c.Expiration,
	}, nil
}
