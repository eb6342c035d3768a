package remote

import (
	"github.com/jrsteele09/go-auth-client/credential"
)

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>"
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	// RefreshToken is single-use; every refresh returns a new one
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`
	// RefreshExpiresIn is the refresh token lifetime in seconds
	RefreshExpiresIn int64 `json:"refresh_expires_in,omitempty"`
	// User is only populated by some endpoints
	User *User `json:"user,omitempty"`
}

// Credential derives the persisted credential, stamping the expiry from now.
func (r *AuthResponse) Credential() (credential.Credential, error) {
	return credential.Issue(r.AccessToken, r.RefreshToken, r.ExpiresIn)
}

// User is the minimal identity returned by /auth/me
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
