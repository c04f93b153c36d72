// Package awsauth manages AWS credentials and signs requests with them using
// AWS Signature Version 4.
//
// The package composes the providers of pkg/credentials into a provider graph
// via ProviderFactory descriptors, which defer construction until the shared
// HTTP client, logger and environment accessor are available, and exposes a
// Signer retrieving credentials from the graph for every outgoing request.
package awsauth
