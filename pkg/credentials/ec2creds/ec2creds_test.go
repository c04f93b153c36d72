package ec2creds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "IMDS-TOKEN"

// newIMDSServer fakes the instance metadata endpoint. If requireToken is set,
// the token handshake succeeds and metadata requests must carry the session
// token; otherwise the handshake is rejected and metadata requests must come
// in without a token header.
func newIMDSServer(t *testing.T, requireToken bool, expiration time.Time) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest/api/token":
			require.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "21600", r.Header.Get("X-aws-ec2-metadata-token-ttl-seconds"))

			if !requireToken {
				http.Error(w, "not found", http.StatusNotFound)

				return
			}

			fmt.Fprint(w, testToken)
		case "/latest/meta-data/iam/security-credentials/":
			require.Equal(t, http.MethodGet, r.Method)
			if requireToken {
				assert.Equal(t, testToken, r.Header.Get("X-aws-ec2-metadata-token"))
			} else {
				assert.Empty(t, r.Header.Get("X-aws-ec2-metadata-token"))
			}

			fmt.Fprint(w, "my-role\n")
		case "/latest/meta-data/iam/security-credentials/my-role":
			require.Equal(t, http.MethodGet, r.Method)

			fmt.Fprintf(w, `{
				"Code": "Success",
				"AccessKeyId": "AKID",
				"SecretAccessKey": "SECRET",
				"Token": "SESSION",
				"Expiration": %q
			}`, expiration.Format(time.RFC3339))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
}

func TestRetrieveIMDSv2(t *testing.T) {
	expiration := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	srv := newIMDSServer(t, true, expiration)
	defer srv.Close()

	provider := New(WithEndpoint(srv.URL))

	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "SECRET", creds.SecretAccessKey)
	assert.Equal(t, "SESSION", creds.SessionToken)
	assert.Equal(t, ProviderName, creds.ProviderName)
	assert.True(t, creds.CanExpire)
	assert.True(t, creds.Expires.Equal(expiration))
}

func TestRetrieveFallsBackToIMDSv1(t *testing.T) {
	expiration := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	// Token request is rejected; the role name request must still run,
	// without a token header.
	srv := newIMDSServer(t, false, expiration)
	defer srv.Close()

	provider := New(WithEndpoint(srv.URL))

	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

func TestRetrieveNoRoleAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest/api/token" {
			http.Error(w, "not found", http.StatusNotFound)

			return
		}

		fmt.Fprint(w, "")
	}))
	defer srv.Close()

	provider := New(WithEndpoint(srv.URL))

	_, err := provider.Retrieve(context.Background())
	require.ErrorIs(t, err, ErrMissingRoleName)
}

func TestRetrieveUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	provider := New(WithEndpoint(srv.URL))

	_, err := provider.Retrieve(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedMetadataStatus)
}

func TestRetrieveFailureDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest/api/token":
			http.Error(w, "not found", http.StatusNotFound)
		case "/latest/meta-data/iam/security-credentials/":
			fmt.Fprint(w, "my-role")
		default:
			fmt.Fprint(w, `{"Code": "AssumeRoleUnauthorizedAccess"}`)
		}
	}))
	defer srv.Close()

	provider := New(WithEndpoint(srv.URL))

	_, err := provider.Retrieve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AssumeRoleUnauthorizedAccess")
}
