// Package credstore provides durable generate-once credential management.
//
// Credentials (unseal keys, root tokens, passwords, TLS material) are generated
// on first use, persisted before they are handed out, and reused unchanged on
// every subsequent run. The store is the only cross-phase shared resource in the
// deployment core; all writers go through Bootstrap's per-name serialization.
package credstore

import "errors"

// ErrPersist marks a credential that could not be durably stored. A credential
// that exists only in memory must not be used: a later run would regenerate it
// and desynchronize every component that consumed the old value.
var ErrPersist = errors.New("credential persistence failed")

// Store is durable key-value persistence for credential material. Values put
// into the store survive process restarts.
type Store interface {
	// Get returns the stored value for name, or found=false if absent.
	Get(name string) (value []byte, found bool, err error)

	// Put durably stores value under name, replacing any previous value.
	Put(name string, value []byte) error

	// List returns all stored credential names.
	List() ([]string, error)

	// Close releases the underlying storage.
	Close() error
}
