package bridge

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a client presents a wrong token.
var ErrUnauthorized = errors.New("bridge: unauthorized")

// Authenticator validates incoming bridge connections.
type Authenticator interface {
	Authenticate(token string) error
}

// TokenAuth accepts clients presenting one shared token. An empty token
// accepts everyone.
type TokenAuth struct {
	token []byte
}

// NewTokenAuth builds an authenticator for token.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: []byte(token)}
}

// Authenticate uses constant-time comparison.
func (a *TokenAuth) Authenticate(token string) error {
	if len(a.token) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), a.token) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// requestToken reads the token from the query string or a bearer header.
func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
