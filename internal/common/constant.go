// Package common contains shared constants and sentinel errors used across
// the community service components.
package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key carrying
// the session token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the session token in AuthorizationHeaderName.
const BearerScheme = "Bearer"

// DefaultPageSize and MaxPageSize bound list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)
