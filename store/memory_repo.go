package store

import (
	"context"
	"sync"
)

var (
	_ Repo      = (*MemoryRepo)(nil)
	_ BatchRepo = (*MemoryRepo)(nil)
)

// MemoryRepo keeps the session in process memory. It does not survive a restart.
type MemoryRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{values: make(map[string]string)}
}

func (r *MemoryRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *MemoryRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.values, key)
	return nil
}

// SetAll writes every entry under one lock
func (r *MemoryRepo) SetAll(_ context.Context, entries []Entry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, e := range entries {
		r.values[e.Key] = e.Value
	}
	return nil
}

// DeleteAll removes every key under one lock
func (r *MemoryRepo) DeleteAll(_ context.Context, keys []string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}
