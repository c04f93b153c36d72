// Package sharedconfig resolves credentials from the AWS shared credentials
// and config files (by default ~/.aws/credentials and ~/.aws/config).
//
// Resolution of a profile yields either a static provider, when the merged
// profile carries plain keys, or a rotating STS assume-role provider, when it
// carries a role_arn with a source_profile whose own credentials sign the
// assume-role call.
package sharedconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	ini "gopkg.in/ini.v1"

	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/credentials/stscreds"
)

const (
	// DefaultProfile is the profile resolved when none is configured.
	DefaultProfile = "default"
	// DefaultRegion is used for STS calls when the profile sets no region.
	DefaultRegion = "us-east-1"
)

const (
	keyAccessKeyID      = "aws_access_key_id"
	keySecretAccessKey  = "aws_secret_access_key"
	keySessionToken     = "aws_session_token"
	keyRoleARN          = "role_arn"
	keySourceProfile    = "source_profile"
	keyCredentialSource = "credential_source"
	keyRoleSessionName  = "role_session_name"
	keyRegion           = "region"
)

var (
	ErrMissingAccessKeyID     = errors.New("missing aws_access_key_id")
	ErrMissingSecretAccessKey = errors.New("missing aws_secret_access_key")
	ErrMissingSourceProfile   = errors.New("missing source_profile for role_arn")
)

// MissingProfileError reports that a requested profile was found in neither
// the credentials nor the config file.
type MissingProfileError struct {
	Profile string
}

func (e *MissingProfileError) Error() string {
	return fmt.Sprintf("missing profile %s", e.Profile)
}

// UnsupportedCredentialSourceError reports a profile combining role_arn with
// credential_source. Resolving base credentials from a credential_source
// (Environment, Ec2InstanceMetadata, EcsContainer) is a recognized but
// unimplemented configuration; failing fast beats guessing its semantics.
type UnsupportedCredentialSourceError struct {
	Source string
}

func (e *UnsupportedCredentialSourceError) Error() string {
	return fmt.Sprintf("credential_source %q is not supported, use source_profile instead", e.Source)
}

// DefaultCredentialsPath returns the default shared credentials file location
// below the given home directory.
func DefaultCredentialsPath(homeDir string) string {
	return filepath.Join(homeDir, ".aws", "credentials")
}

// DefaultConfigPath returns the default profile config file location below the
// given home directory.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, ".aws", "config")
}

// Files holds the parsed credentials and config files of a shared
// configuration.
type Files struct {
	credentials *ini.File
	config      *ini.File
}

// Load parses the shared credentials and config files. Missing files are
// tolerated and treated as empty; syntactically invalid files are an error.
func Load(credentialsPath string, configPath string) (*Files, error) {
	creds, err := ini.LooseLoad(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("loading shared credentials file: %w", err)
	}

	config, err := ini.LooseLoad(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading shared config file: %w", err)
	}

	return &Files{
		credentials: creds,
		config:      config,
	}, nil
}

// BuildOptions carries the external dependencies handed to providers built
// during resolution.
type BuildOptions struct {
	// HTTPClient used for STS requests, defaulting to http.DefaultClient.
	HTTPClient *http.Client
	// Logger used by rotating providers, nil to discard.
	Logger *slog.Logger
	// TimeNowFunc for deterministic tests, nil for time.Now.
	TimeNowFunc func() time.Time
	// STSEndpoint overrides the STS endpoint, for testing or VPC endpoints.
	STSEndpoint string
}

// Credentials resolves the named profile into a provider. Profiles without a
// role_arn yield a static provider; profiles with a role_arn and a
// source_profile yield a rotating assume-role provider whose base credentials
// are resolved recursively from the source profile.
func (f *Files) Credentials(profileName string, opts BuildOptions) (credentials.Provider, error) {
	return f.buildProvider(profileName, opts, map[string]struct{}{})
}

func (f *Files) buildProvider(name string, opts BuildOptions, visited map[string]struct{}) (credentials.Provider, error) {
	if _, ok := visited[name]; ok {
		return nil, fmt.Errorf("circular source_profile reference involving profile %q", name)
	}
	visited[name] = struct{}{}

	p, err := f.profile(name)
	if err != nil {
		return nil, err
	}

	if len(p.roleARN) == 0 {
		if len(p.accessKeyID) == 0 {
			return nil, fmt.Errorf("profile %q: %w", name, ErrMissingAccessKeyID)
		}
		if len(p.secretAccessKey) == 0 {
			return nil, fmt.Errorf("profile %q: %w", name, ErrMissingSecretAccessKey)
		}

		return credentials.NewStaticProvider(p.accessKeyID, p.secretAccessKey, p.sessionToken), nil
	}

	var base credentials.Provider
	switch {
	case len(p.sourceProfile) > 0:
		base, err = f.buildProvider(p.sourceProfile, opts, visited)
		if err != nil {
			return nil, err
		}
	case len(p.credentialSource) > 0:
		return nil, &UnsupportedCredentialSourceError{Source: p.credentialSource}
	default:
		return nil, fmt.Errorf("profile %q: %w", name, ErrMissingSourceProfile)
	}

	sessionName := p.roleSessionName
	if len(sessionName) == 0 {
		sessionName = uuid.NewString()
	}

	region := p.region
	if len(region) == 0 {
		region = DefaultRegion
	}

	var stsOpts []stscreds.Option
	if opts.HTTPClient != nil {
		stsOpts = append(stsOpts, stscreds.WithHTTPClient(opts.HTTPClient))
	}
	if len(opts.STSEndpoint) > 0 {
		stsOpts = append(stsOpts, stscreds.WithEndpoint(opts.STSEndpoint))
	}
	if opts.TimeNowFunc != nil {
		stsOpts = append(stsOpts, stscreds.WithTimeNowFunc(opts.TimeNowFunc))
	}

	sts := stscreds.NewAssumeRoleProvider(base, p.roleARN, sessionName, region, stsOpts...)

	var rotOpts []credentials.RotatingOption
	if opts.Logger != nil {
		rotOpts = append(rotOpts, credentials.WithLogger(opts.Logger))
	}
	if opts.TimeNowFunc != nil {
		rotOpts = append(rotOpts, credentials.WithTimeNowFunc(opts.TimeNowFunc))
	}

	return credentials.NewRotatingProvider(sts, rotOpts...), nil
}

// profile merges the settings of the named profile. The credentials file uses
// the profile name verbatim as section name while the config file prefixes all
// but the default profile with "profile "; when both files define a setting,
// the credentials file wins.
func (f *Files) profile(name string) (*profile, error) {
	p := &profile{}
	found := false

	if sec := f.configSection(name); sec != nil {
		found = true
		p.apply(sec)
	}
	if sec, err := f.credentials.GetSection(name); err == nil {
		found = true
		p.apply(sec)
	}

	if !found {
		return nil, &MissingProfileError{Profile: name}
	}

	return p, nil
}

func (f *Files) configSection(name string) *ini.Section {
	sectionName := name
	if name != DefaultProfile {
		sectionName = "profile " + name
	}

	sec, err := f.config.GetSection(sectionName)
	if err != nil {
		return nil
	}

	return sec
}

type profile struct {
	accessKeyID      string
	secretAccessKey  string
	sessionToken     string
	roleARN          string
	sourceProfile    string
	credentialSource string
	roleSessionName  string
	region           string
}

func (p *profile) apply(sec *ini.Section) {
	set := func(dst *string, key string) {
		if sec.HasKey(key) {
			if v := sec.Key(key).String(); len(v) > 0 {
				*dst = v
			}
		}
	}

	set(&p.accessKeyID, keyAccessKeyID)
	set(&p.secretAccessKey, keySecretAccessKey)
	set(&p.sessionToken, keySessionToken)
	set(&p.roleARN, keyRoleARN)
	set(&p.sourceProfile, keySourceProfile)
	set(&p.credentialSource, keyCredentialSource)
	set(&p.roleSessionName, keyRoleSessionName)
	set(&p.region, keyRegion)
}
