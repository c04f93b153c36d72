package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookupEnv(env map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestEnvProviderRetrieve(t *testing.T) {
	provider := &EnvProvider{LookupEnv: mapLookupEnv(map[string]string{
		EnvAccessKeyID:     "AKID",
		EnvSecretAccessKey: "SECRET",
		EnvSessionToken:    "SESSION",
	})}

	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "SECRET", creds.SecretAccessKey)
	assert.Equal(t, "SESSION", creds.SessionToken)
	assert.Equal(t, EnvProviderName, creds.ProviderName)
	assert.False(t, creds.CanExpire)
}

func TestEnvProviderRetrieveWithoutSessionToken(t *testing.T) {
	provider := &EnvProvider{LookupEnv: mapLookupEnv(map[string]string{
		EnvAccessKeyID:     "AKID",
		EnvSecretAccessKey: "SECRET",
	})}

	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds.SessionToken)
}

func TestEnvProviderRetrieveMissingVariables(t *testing.T) {
	provider := &EnvProvider{LookupEnv: mapLookupEnv(nil)}

	_, err := provider.Retrieve(context.Background())
	require.ErrorIs(t, err, ErrAccessKeyIDNotFound)

	provider = &EnvProvider{LookupEnv: mapLookupEnv(map[string]string{
		EnvAccessKeyID: "AKID",
	})}

	_, err = provider.Retrieve(context.Background())
	require.ErrorIs(t, err, ErrSecretAccessKeyNotFound)
}
