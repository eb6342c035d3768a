package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/store"
)

var _ store.Repo = (*FakeKVRepo)(nil)

// FakeKVRepo is an in-memory store.Repo. It records every operation and can be
// told to fail reads or writes for specific keys.
type FakeKVRepo struct {
	values    map[string]string
	ops       []string
	getErrs   map[string]error
	setErrs   map[string]error
	deleteErr error
	lock      sync.RWMutex
}

func NewFakeKVRepo() *FakeKVRepo {
	return &FakeKVRepo{
		values:  make(map[string]string),
		getErrs: make(map[string]error),
		setErrs: make(map[string]error),
	}
}

func (r *FakeKVRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if err := r.getErrs[key]; err != nil {
		return "", false, err
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *FakeKVRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.ops = append(r.ops, "set "+key)
	if err := r.setErrs[key]; err != nil {
		return err
	}
	r.values[key] = value
	return nil
}

func (r *FakeKVRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.ops = append(r.ops, "delete "+key)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.values, key)
	return nil
}

// FailGet makes reads of key return err. A nil err clears the failure.
func (r *FakeKVRepo) FailGet(key string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.getErrs[key] = err
}

// FailSet makes writes of key return err. A nil err clears the failure.
func (r *FakeKVRepo) FailSet(key string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.setErrs[key] = err
}

func (r *FakeKVRepo) FailDelete(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.deleteErr = err
}

// Has reports whether key holds a value
func (r *FakeKVRepo) Has(key string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.values[key]
	return ok
}

// Ops returns the recorded writes and deletes in order
func (r *FakeKVRepo) Ops() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]string(nil), r.ops...)
}

func (r *FakeKVRepo) ResetOps() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ops = nil
}
