package awsauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/credentials/ec2creds"
	"github.com/allaboutapps/awsauth/pkg/credentials/ecscreds"
	"github.com/allaboutapps/awsauth/pkg/credentials/sharedconfig"
	"github.com/allaboutapps/awsauth/pkg/credentials/stscreds"
)

const (
	EnvProfile               = "AWS_PROFILE"
	EnvRegion                = "AWS_REGION"
	EnvRoleARN               = "AWS_ROLE_ARN"
	EnvRoleSessionName       = "AWS_ROLE_SESSION_NAME"
	EnvWebIdentityTokenFile  = "AWS_WEB_IDENTITY_TOKEN_FILE"
	EnvSharedCredentialsFile = "AWS_SHARED_CREDENTIALS_FILE"
	EnvConfigFile            = "AWS_CONFIG_FILE"
)

var ErrWebIdentityNotConfigured = errors.New("AWS_ROLE_ARN or AWS_WEB_IDENTITY_TOKEN_FILE not found in environment")

// FactoryContext carries the external dependencies providers are built with.
// The zero value is usable: nil fields fall back to http.DefaultClient, a
// discarding logger, os.LookupEnv and time.Now.
type FactoryContext struct {
	HTTPClient  *http.Client
	Logger      *slog.Logger
	LookupEnv   credentials.LookupEnvFunc
	TimeNowFunc func() time.Time
}

// ProviderFactory describes a credential provider whose construction is
// deferred until the FactoryContext is available. Factories are composable:
// Selector chains factories into an ordered fallback.
type ProviderFactory struct {
	build func(fctx FactoryContext) credentials.Provider
}

// Build constructs the described provider graph with the given dependencies.
func (f ProviderFactory) Build(fctx FactoryContext) credentials.Provider {
	return f.build(fctx)
}

// NewSignerFromFactory builds the factory's provider graph and returns a
// Signer retrieving credentials from it.
func NewSignerFromFactory(factory ProviderFactory, fctx FactoryContext) *Signer {
	return NewSignerWithTimeNowFunc(factory.Build(fctx), fctx.TimeNowFunc)
}

// StaticCredentials describes a provider returning the given fixed
// credentials.
func StaticCredentials(id string, secret string, token string) ProviderFactory {
	return ProviderFactory{build: func(_ FactoryContext) credentials.Provider {
		return credentials.NewStaticProvider(id, secret, token)
	}}
}

// EmptyCredentials describes a provider returning the anonymous empty
// credentials sentinel, leaving requests unsigned.
func EmptyCredentials() ProviderFactory {
	return ProviderFactory{build: func(_ FactoryContext) credentials.Provider {
		return credentials.NewEmptyProvider()
	}}
}

// Environment describes a provider reading credentials from the process
// environment.
func Environment() ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		return &credentials.EnvProvider{LookupEnv: fctx.LookupEnv}
	}}
}

// ContainerCredentials describes a rotating provider backed by the container
// metadata endpoint. If the container credentials environment variable is
// absent, the built provider fails every retrieval with
// ecscreds.ErrNoContainerCredentials, letting a surrounding Selector move on.
func ContainerCredentials() ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		var opts []ecscreds.Option
		if fctx.HTTPClient != nil {
			opts = append(opts, ecscreds.WithHTTPClient(fctx.HTTPClient))
		}

		source, err := ecscreds.New(fctx.LookupEnv, opts...)
		if err != nil {
			return errorProvider{err: err}
		}

		return credentials.NewRotatingProvider(source, rotatingOpts(fctx)...)
	}}
}

// InstanceCredentials describes a rotating provider backed by the EC2
// instance metadata endpoint.
func InstanceCredentials() ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		var opts []ec2creds.Option
		if fctx.HTTPClient != nil {
			opts = append(opts, ec2creds.WithHTTPClient(fctx.HTTPClient))
		}
		if fctx.Logger != nil {
			opts = append(opts, ec2creds.WithLogger(fctx.Logger))
		}

		return credentials.NewRotatingProvider(ec2creds.New(opts...), rotatingOpts(fctx)...)
	}}
}

// WebIdentity describes a rotating provider exchanging the web identity token
// configured through the environment for role credentials.
func WebIdentity() ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		roleARN, _ := fctx.LookupEnv.Lookup(EnvRoleARN)
		tokenFile, _ := fctx.LookupEnv.Lookup(EnvWebIdentityTokenFile)
		if len(roleARN) == 0 || len(tokenFile) == 0 {
			return errorProvider{err: ErrWebIdentityNotConfigured}
		}

		sessionName, _ := fctx.LookupEnv.Lookup(EnvRoleSessionName)
		if len(sessionName) == 0 {
			sessionName = uuid.NewString()
		}

		region, _ := fctx.LookupEnv.Lookup(EnvRegion)
		if len(region) == 0 {
			region = sharedconfig.DefaultRegion
		}

		var opts []stscreds.Option
		if fctx.HTTPClient != nil {
			opts = append(opts, stscreds.WithHTTPClient(fctx.HTTPClient))
		}
		if fctx.TimeNowFunc != nil {
			opts = append(opts, stscreds.WithTimeNowFunc(fctx.TimeNowFunc))
		}

		source := stscreds.NewWebIdentityProvider(tokenFile, roleARN, sessionName, region, opts...)

		return credentials.NewRotatingProvider(source, rotatingOpts(fctx)...)
	}}
}

// ConfigFile describes a provider resolved from the shared credentials and
// config files. File locations and the profile honor the usual environment
// overrides; an empty profile name means AWS_PROFILE or the default profile.
//
// The file I/O and resolution run once, in the background, starting at build
// time; every retrieval shares that one resolution. A profile resolving to an
// assume-role chain keeps its rotation semantics.
func ConfigFile(profileName string) ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		return credentials.NewDeferredBuildProvider(func(_ context.Context) (credentials.Provider, error) {
			profile := profileName
			if len(profile) == 0 {
				if p, ok := fctx.LookupEnv.Lookup(EnvProfile); ok && len(p) > 0 {
					profile = p
				} else {
					profile = sharedconfig.DefaultProfile
				}
			}

			credentialsPath, _ := fctx.LookupEnv.Lookup(EnvSharedCredentialsFile)
			configPath, _ := fctx.LookupEnv.Lookup(EnvConfigFile)
			if len(credentialsPath) == 0 || len(configPath) == 0 {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, err
				}
				if len(credentialsPath) == 0 {
					credentialsPath = sharedconfig.DefaultCredentialsPath(home)
				}
				if len(configPath) == 0 {
					configPath = sharedconfig.DefaultConfigPath(home)
				}
			}

			files, err := sharedconfig.Load(credentialsPath, configPath)
			if err != nil {
				return nil, err
			}

			return files.Credentials(profile, sharedconfig.BuildOptions{
				HTTPClient:  fctx.HTTPClient,
				Logger:      fctx.Logger,
				TimeNowFunc: fctx.TimeNowFunc,
			})
		})
	}}
}

// Selector describes an ordered fallback across the given factories, settling
// permanently on the first built provider that returns credentials. A single
// factory is built directly without the fallback wrapper.
func Selector(factories ...ProviderFactory) ProviderFactory {
	return ProviderFactory{build: func(fctx FactoryContext) credentials.Provider {
		providers := make([]credentials.Provider, 0, len(factories))
		for _, f := range factories {
			providers = append(providers, f.Build(fctx))
		}

		return credentials.NewChainProvider(providers, fctx.Logger)
	}}
}

// DefaultProviders describes the standard provider chain: environment,
// container metadata, instance metadata, shared config files.
func DefaultProviders() ProviderFactory {
	return Selector(
		Environment(),
		ContainerCredentials(),
		InstanceCredentials(),
		ConfigFile(""),
	)
}

func rotatingOpts(fctx FactoryContext) []credentials.RotatingOption {
	var opts []credentials.RotatingOption
	if fctx.Logger != nil {
		opts = append(opts, credentials.WithLogger(fctx.Logger))
	}
	if fctx.TimeNowFunc != nil {
		opts = append(opts, credentials.WithTimeNowFunc(fctx.TimeNowFunc))
	}

	return opts
}

// errorProvider fails every retrieval with a fixed error, modelling a source
// that is structurally inapplicable in the current environment.
type errorProvider struct {
	err error
}

func (e errorProvider) Retrieve(_ context.Context) (credentials.Credentials, error) {
	return credentials.Credentials{}, e.err
}

func (e errorProvider) Shutdown() {}
