package authserver

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var ErrInvalidAccessToken = errors.New("invalid access token")

// accessTokens mints and verifies HS256 access tokens. Every token carries the
// generation it was minted in; bumping the generation revokes all older tokens.
type accessTokens struct {
	issuer string
	secret []byte
	expiry time.Duration
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Email      string `json:"email"`
	Generation int64  `json:"gen"`
}

func (a *accessTokens) Create(user *User, generation int64) (string, error) {
	now := NowTimeFunc()
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.expiry)),
			ID:        uuid.New().String(),
		},
		Email:      user.Email,
		Generation: generation,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and generation and returns the user ID
func (a *accessTokens) Verify(token string, minGeneration int64) (int64, error) {
	var claims accessClaims
	_, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwtlib.WithIssuer(a.issuer),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if claims.Generation < minGeneration {
		return 0, fmt.Errorf("%w: revoked", ErrInvalidAccessToken)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidAccessToken)
	}
	return id, nil
}
