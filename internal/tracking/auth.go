package tracking

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// authorizer decorates outgoing requests with credentials.
type authorizer interface {
	authorize(req *http.Request) error
}

func newAuthorizer(token, username, password string) authorizer {
	switch {
	case token != "":
		return newBearerAuth(token)
	case username != "":
		return basicAuth{username: username, password: password}
	default:
		return noAuth{}
	}
}

type noAuth struct{}

func (noAuth) authorize(*http.Request) error { return nil }

type basicAuth struct {
	username string
	password string
}

func (b basicAuth) authorize(req *http.Request) error {
	req.SetBasicAuth(b.username, b.password)
	return nil
}

// bearerAuth sends a static token. When the token is a JWT its exp claim is
// read (without verification; the server verifies) so an expired token fails
// locally instead of producing a confusing 401 per request.
type bearerAuth struct {
	token     string
	expiresAt time.Time // zero when the token is opaque or has no exp
	now       func() time.Time
}

func newBearerAuth(token string) *bearerAuth {
	return &bearerAuth{
		token:     token,
		expiresAt: tokenExpiry(token),
		now:       time.Now,
	}
}

func (b *bearerAuth) authorize(req *http.Request) error {
	if !b.expiresAt.IsZero() && !b.now().Before(b.expiresAt) {
		return fmt.Errorf("tracking: bearer token expired at %s", b.expiresAt.UTC().Format(time.RFC3339))
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

// tokenExpiry returns the exp claim of a JWT, or the zero time for opaque
// tokens (personal access tokens and the like).
func tokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
