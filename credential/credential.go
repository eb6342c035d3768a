// Package credential holds the unit of authentication state: an access token,
// a refresh token and the absolute time the access token expires.
package credential

import (
	"strconv"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const bearer = "Bearer"

type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Issue builds a credential whose expiry is the issue time plus the server declared
// lifetime in seconds.
func Issue(accessToken, refreshToken string, expiresIn int64) (Credential, error) {
	if accessToken == "" {
		return Credential{}, autherrors.Wrapf(autherrors.ErrInvalidAuthResponse, "missing access_token")
	}
	if expiresIn < 0 {
		return Credential{}, autherrors.Wrapf(autherrors.ErrInvalidAuthResponse, "negative expires_in %d", expiresIn)
	}
	return Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    NowTimeFunc().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// Present reports whether there is an access token to attach
func (c Credential) Present() bool {
	return c.AccessToken != ""
}

// Expired is a local clock check. It is never used to gate attachment.
func (c Credential) Expired() bool {
	return c.ExpiresAt.IsZero() || !NowTimeFunc().Before(c.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires inside the leeway window
func (c Credential) ExpiresWithin(leeway time.Duration) bool {
	return c.ExpiresAt.IsZero() || !NowTimeFunc().Add(leeway).Before(c.ExpiresAt)
}

// Token converts the credential for use with golang.org/x/oauth2.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    bearer,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// FormatExpiry encodes an expiry as decimal epoch milliseconds
func FormatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseExpiry decodes decimal epoch milliseconds
func ParseExpiry(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, autherrors.Wrapf(autherrors.ErrCorruptExpiry, "parse %q", s)
	}
	return time.UnixMilli(ms), nil
}
