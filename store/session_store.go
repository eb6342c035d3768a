package store

import (
	"context"

	"github.com/jrsteele09/go-auth-client/credential"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Persisted key names. The three entries are always written and cleared together.
const (
	AccessTokenKey  = "app_token"
	RefreshTokenKey = "app_refresh_token"
	ExpiryKey       = "app_token_expiry"
)

// SessionStore owns the persisted credential. It has no logic beyond
// ordered get, set and clear over the three entries.
type SessionStore struct {
	repo   Repo
	prefix string
}

type Option func(*SessionStore)

// WithKeyPrefix namespaces the three keys, e.g. "myapp:" on a shared Redis.
func WithKeyPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

func NewSessionStore(repo Repo, opts ...Option) *SessionStore {
	s := &SessionStore{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the persisted keys in write order
func (s *SessionStore) Keys() []string {
	return []string{s.prefix + AccessTokenKey, s.prefix + RefreshTokenKey, s.prefix + ExpiryKey}
}

// AccessToken returns "" with a nil error when no token is stored
func (s *SessionStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.prefix+AccessTokenKey)
}

// RefreshToken returns "" with a nil error when no token is stored
func (s *SessionStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.prefix+RefreshTokenKey)
}

// HasCredential is a presence check on the access token. Read errors count as absent.
func (s *SessionStore) HasCredential(ctx context.Context) bool {
	token, err := s.AccessToken(ctx)
	return err == nil && token != ""
}

// Credential reads all three entries. A missing expiry leaves ExpiresAt zero.
func (s *SessionStore) Credential(ctx context.Context) (credential.Credential, error) {
	var c credential.Credential
	var err error
	if c.AccessToken, err = s.AccessToken(ctx); err != nil {
		return credential.Credential{}, err
	}
	if c.RefreshToken, err = s.RefreshToken(ctx); err != nil {
		return credential.Credential{}, err
	}
	expiry, err := s.get(ctx, s.prefix+ExpiryKey)
	if err != nil {
		return credential.Credential{}, err
	}
	if expiry != "" {
		if c.ExpiresAt, err = credential.ParseExpiry(expiry); err != nil {
			return credential.Credential{}, err
		}
	}
	return c, nil
}

// Save writes access token, refresh token and expiry in that order. If any write
// fails the entries are cleared so a half-written credential never survives.
func (s *SessionStore) Save(ctx context.Context, c credential.Credential) error {
	keys := s.Keys()
	entries := []Entry{
		{Key: keys[0], Value: c.AccessToken},
		{Key: keys[1], Value: c.RefreshToken},
		{Key: keys[2], Value: credential.FormatExpiry(c.ExpiresAt)},
	}

	var err error
	if batch, ok := s.repo.(BatchRepo); ok {
		err = batch.SetAll(ctx, entries)
	} else {
		for _, e := range entries {
			if err = s.repo.Set(ctx, e.Key, e.Value); err != nil {
				break
			}
		}
	}
	if err != nil {
		return autherrors.Join(
			autherrors.Wrapf(autherrors.ErrStoreUnavailable, "save credential: %v", err),
			s.Clear(ctx),
		)
	}
	return nil
}

// Clear deletes all three entries, attempting every delete even when one fails.
func (s *SessionStore) Clear(ctx context.Context) error {
	keys := s.Keys()
	if batch, ok := s.repo.(BatchRepo); ok {
		if err := batch.DeleteAll(ctx, keys); err != nil {
			return autherrors.Wrapf(autherrors.ErrStoreUnavailable, "clear credential: %v", err)
		}
		return nil
	}

	var errs []error
	for _, key := range keys {
		if err := s.repo.Delete(ctx, key); err != nil {
			errs = append(errs, autherrors.Wrapf(autherrors.ErrStoreUnavailable, "delete %s: %v", key, err))
		}
	}
	return autherrors.Join(errs...)
}

func (s *SessionStore) get(ctx context.Context, key string) (string, error) {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", autherrors.Wrapf(autherrors.ErrStoreUnavailable, "get %s: %v", key, err)
	}
	if !found {
		return "", nil
	}
	return value, nil
}
