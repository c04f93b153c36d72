package credentials

import (
	"context"
	"errors"
)

const (
	StaticProviderName = "StaticProvider"
	EmptyProviderName  = "EmptyProvider"
)

var (
	ErrStaticCredentialsEmpty = errors.New("static credentials are empty")
)

// StaticProvider returns a fixed set of credentials. Static credentials never
// expire and are never refreshed.
type StaticProvider struct {
	Credentials
}

func NewStaticProvider(id string, secret string, token string) *StaticProvider {
	return &StaticProvider{
		Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			ProviderName:    StaticProviderName,
		},
	}
}

func (s *StaticProvider) Retrieve(_ context.Context) (Credentials, error) {
	if !s.HasKeys() {
		return Credentials{ProviderName: StaticProviderName}, ErrStaticCredentialsEmpty
	}

	if len(s.Credentials.ProviderName) == 0 {
		s.Credentials.ProviderName = StaticProviderName
	}

	return s.Credentials, nil
}

func (s *StaticProvider) Shutdown() {}

// EmptyProvider successfully returns credentials with empty keys, the explicit
// sentinel for anonymous (unsigned) access. This differs from StaticProvider,
// for which empty keys are an error.
type EmptyProvider struct{}

func NewEmptyProvider() *EmptyProvider {
	return &EmptyProvider{}
}

func (e *EmptyProvider) Retrieve(_ context.Context) (Credentials, error) {
	return Credentials{ProviderName: EmptyProviderName}, nil
}

func (e *EmptyProvider) Shutdown() {}
