package store

import "context"

// Repo is client-side key-value storage for session material.
// Get returns found=false, err=nil for a missing key.
type Repo interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// BatchRepo is implemented by backends that can apply several writes atomically.
// Entries are applied in slice order.
type BatchRepo interface {
	Repo
	SetAll(ctx context.Context, entries []Entry) error
	DeleteAll(ctx context.Context, keys []string) error
}

type Entry struct {
	Key   string
	Value string
}
