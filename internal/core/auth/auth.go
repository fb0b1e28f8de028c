package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// BearerPrefix is the required Authorization scheme prefix
const BearerPrefix = "Bearer "

// ErrUnauthorized is returned when the header is missing, malformed or wrong
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator checks inbound requests against the single master token
type Authenticator struct {
	token []byte
}

// NewAuthenticator creates an authenticator for the given master token.
// An empty token rejects every request.
func NewAuthenticator(masterToken string) *Authenticator {
	return &Authenticator{token: []byte(strings.TrimSpace(masterToken))}
}

// Authenticate validates an Authorization header value
func (a *Authenticator) Authenticate(header string) error {
	if len(a.token) == 0 {
		return ErrUnauthorized
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return ErrUnauthorized
	}

	presented := strings.TrimSpace(header[len(BearerPrefix):])
	if presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), a.token) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Configured reports whether a master token is set
func (a *Authenticator) Configured() bool {
	return len(a.token) > 0
}
