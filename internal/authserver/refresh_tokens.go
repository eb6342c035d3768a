package authserver

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// storedRefreshToken is the server-side metadata for an opaque refresh token.
type storedRefreshToken struct {
	Token  string
	UserID int64
	Iat    time.Time
}

// refreshTokens issues opaque single-use refresh tokens. Rotating a token
// deletes it, so replaying it fails.
type refreshTokens struct {
	length int
	expiry time.Duration
	tokens map[string]*storedRefreshToken
	lock   sync.Mutex
}

func newRefreshTokens(length int, expiry time.Duration) *refreshTokens {
	return &refreshTokens{
		length: length,
		expiry: expiry,
		tokens: make(map[string]*storedRefreshToken),
	}
}

func (m *refreshTokens) Create(userID int64) (string, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.tokens[token] = &storedRefreshToken{Token: token, UserID: userID, Iat: NowTimeFunc()}
	return token, nil
}

// Consume validates and deletes token, returning its user
func (m *refreshTokens) Consume(token string) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rt, ok := m.tokens[token]
	if !ok {
		return 0, ErrInvalidRefreshToken
	}
	delete(m.tokens, token)
	if NowTimeFunc().Sub(rt.Iat) > m.expiry {
		return 0, ErrRefreshTokenExpired
	}
	return rt.UserID, nil
}

// RevokeAll deletes every outstanding refresh token
func (m *refreshTokens) RevokeAll() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tokens = make(map[string]*storedRefreshToken)
}
