package credentials

import (
	"time"

	"github.com/allaboutapps/awsauth/pkg/util"
)

// Credentials represents a set of credentials consisting of an access key ID and
// its corresponding secret as well as an optional session token.
//
// Credentials retrieved from time-limited sources (STS, instance or container
// metadata) additionally carry an expiration timestamp.
type Credentials struct {
	// AWS Access Key ID
	AccessKeyID string
	// AWS Secret Access Key
	SecretAccessKey string
	// AWS Session Token
	SessionToken string
	// Name of provider used to retrieve credentials
	ProviderName string

	// CanExpire indicates whether the credentials are time-limited.
	CanExpire bool
	// Expires is the point in time the credentials become invalid.
	// Only meaningful if CanExpire is set.
	Expires time.Time
}

// HasKeys reports whether both the access key ID and secret access key are set.
// Credentials without keys act as the anonymous sentinel returned by the
// EmptyProvider, which is distinct from a retrieval failure.
func (c Credentials) HasKeys() bool {
	return len(c.AccessKeyID) > 0 && len(c.SecretAccessKey) > 0
}

// ExpiresWithin reports whether the credentials expire within the given window
// measured from now. Credentials that cannot expire never do.
func (c Credentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	if !c.CanExpire {
		return false
	}

	return c.Expires.Sub(now) < window
}

// Expired reports whether the credentials have expired.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresWithin(now, 0)
}

// DeriveSigningKey derives a HMAC signing key from the credentials in accordance
// with the AWS Signature Version 4 specification using the signing time as well as
// the region and service of the request.
func (c Credentials) DeriveSigningKey(t time.Time, region string, service string) []byte {
	return util.DeriveSigningKey(c.SecretAccessKey, t, region, service)
}
