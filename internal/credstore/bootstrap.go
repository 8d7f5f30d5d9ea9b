package credstore

import (
	"fmt"
	"sync"
)

// Generator produces a new credential value. It is invoked at most once per
// credential name over the lifetime of the store.
type Generator func() ([]byte, error)

// Bootstrap implements generate-once, reuse-thereafter credential semantics on
// top of a Store. Generation is serialized per name so that concurrent phases
// asking for the same credential cannot both generate.
type Bootstrap struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBootstrap creates a Bootstrap backed by store.
func NewBootstrap(store Store) *Bootstrap {
	return &Bootstrap{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Store returns the underlying credential store.
func (b *Bootstrap) Store() Store {
	return b.store
}

// EnsureCredential returns the persisted value for name, generating and
// persisting it first if absent. The returned flag reports whether generation
// happened in this call. The value is durably stored before it is returned; a
// persistence failure is surfaced as ErrPersist and the generated value is
// discarded.
func (b *Bootstrap) EnsureCredential(name string, generate Generator) ([]byte, bool, error) {
	lock := b.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	value, found, err := b.store.Get(name)
	if err != nil {
		return nil, false, err
	}
	if found {
		return value, false, nil
	}

	value, err = generate()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate credential %s: %w", name, err)
	}

	if err := b.store.Put(name, value); err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// nameLock returns the mutex serializing generation for name.
func (b *Bootstrap) nameLock(name string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, ok := b.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[name] = lock
	}
	return lock
}
