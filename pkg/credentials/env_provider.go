package credentials

import (
	"context"
	"errors"
)

const EnvProviderName = "EnvProvider"

const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
)

var (
	ErrAccessKeyIDNotFound     = errors.New("AWS_ACCESS_KEY_ID not found in environment")
	ErrSecretAccessKeyNotFound = errors.New("AWS_SECRET_ACCESS_KEY not found in environment")
)

// EnvProvider retrieves credentials from the process environment. The
// environment is read on every Retrieve; callers wanting a stable snapshot
// wrap it in a DeferredProvider.
type EnvProvider struct {
	// LookupEnv is consulted for variable access, defaulting to os.LookupEnv.
	LookupEnv LookupEnvFunc
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (e *EnvProvider) Retrieve(_ context.Context) (Credentials, error) {
	id, ok := e.LookupEnv.Lookup(EnvAccessKeyID)
	if !ok || len(id) == 0 {
		return Credentials{ProviderName: EnvProviderName}, ErrAccessKeyIDNotFound
	}

	secret, ok := e.LookupEnv.Lookup(EnvSecretAccessKey)
	if !ok || len(secret) == 0 {
		return Credentials{ProviderName: EnvProviderName}, ErrSecretAccessKeyNotFound
	}

	token, _ := e.LookupEnv.Lookup(EnvSessionToken)

	return Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    token,
		ProviderName:    EnvProviderName,
	}, nil
}

func (e *EnvProvider) Shutdown() {}
