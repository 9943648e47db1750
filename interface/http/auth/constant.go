package auth

import "net/http"

const UserIdentityContextKey = "AuthenticatedUserIdentity"

// AuthenticationProvider guards the diagnostics API. Providers add the
// authenticated identity to the request context under
// UserIdentityContextKey.
type AuthenticationProvider interface {
	AuthenticationMiddleware(next http.Handler) http.Handler
	AuthenticationType() any
}

type AuthenticatorType struct {
	Type string `json:"type"`
}
