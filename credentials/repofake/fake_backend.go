package repofake

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/cloudhub-session/credentials"
)

var _ credentials.Backend = (*FakeBackend)(nil)

// ErrInjected is returned by operations configured to fail
var ErrInjected = errors.New("injected backend failure")

type FakeBackend struct {
	name       string
	values     map[string]string
	failSet    bool
	failGet    bool
	failDelete bool
	failSetKey string
	deletes    int
	lock       sync.RWMutex
}

func NewFakeBackend(name string) *FakeBackend {
	return &FakeBackend{
		name:   name,
		values: make(map[string]string),
	}
}

func (fb *FakeBackend) Name() string {
	return fb.name
}

func (fb *FakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	if fb.failGet {
		return "", false, ErrInjected
	}
	v, ok := fb.values[key]
	return v, ok, nil
}

func (fb *FakeBackend) Set(_ context.Context, key, value string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	if fb.failSet || (fb.failSetKey != "" && fb.failSetKey == key) {
		return ErrInjected
	}
	fb.values[key] = value
	return nil
}

func (fb *FakeBackend) Delete(_ context.Context, keys ...string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.deletes++
	if fb.failDelete {
		return ErrInjected
	}
	for _, k := range keys {
		delete(fb.values, k)
	}
	return nil
}

// FailSet makes every Set fail
func (fb *FakeBackend) FailSet(fail bool) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.failSet = fail
}

// FailSetKey makes Set fail only for key, leaving earlier keys of a write in place
func (fb *FakeBackend) FailSetKey(key string) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.failSetKey = key
}

func (fb *FakeBackend) FailGet(fail bool) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.failGet = fail
}

func (fb *FakeBackend) FailDelete(fail bool) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.failDelete = fail
}

// Snapshot returns a copy of the stored values
func (fb *FakeBackend) Snapshot() map[string]string {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	out := make(map[string]string, len(fb.values))
	for k, v := range fb.values {
		out[k] = v
	}
	return out
}

// Seed stores values directly, bypassing failure injection
func (fb *FakeBackend) Seed(values map[string]string) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	for k, v := range values {
		fb.values[k] = v
	}
}

// Deletes counts Delete calls
func (fb *FakeBackend) Deletes() int {
	fb.lock.RLock()
	defer fb.lock.RUnlock()
	return fb.deletes
}
