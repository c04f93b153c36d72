// Package credentials implements credential management for signing requests.
//
// Credentials consist of an access key ID, a secret access key as well as an
// optional session token and, for time-limited sources, an expiration.
//
// This package implements providers for retrieving credentials from different
// sources together with the wrappers composing them: RotatingProvider caches
// and refreshes expiring credentials with a single-flight guarantee,
// DeferredProvider retrieves exactly once, and ChainProvider settles on the
// first source of an ordered list that produces credentials.
package credentials
