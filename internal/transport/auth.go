package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"massivegame/server/internal/auth"
)

// Authenticator validates an upgrade request and returns the peer id it
// should be known by. An empty subject means "use the connection's remote
// address", matching the teacher's allow-all default.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// allowAllAuthenticator accepts every upgrade request without inspecting
// it, the default when no Authenticator is supplied.
type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) { return "", nil }

// hmacAuthenticator validates an auth_token query parameter (or
// X-Auth-Token header) against internal/auth's HMAC token verifier.
type hmacAuthenticator struct {
	verifier *auth.HMACTokenVerifier
}

// NewHMACAuthenticator builds an Authenticator backed by an HMAC-signed
// token shared secret.
func NewHMACAuthenticator(secret string) (Authenticator, error) {
	verifier, err := auth.NewHMACTokenVerifier(secret, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &hmacAuthenticator{verifier: verifier}, nil
}

func (a *hmacAuthenticator) Authenticate(r *http.Request) (string, error) {
	if a == nil || a.verifier == nil {
		return "", errors.New("transport: verifier not configured")
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return "", errors.New("transport: missing auth token")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
