// Package store provides the device's persistent key-value storage.
//
// The firmware keeps four durable entries: the signing key seed, the
// one-time-code secret, the last accepted code step, and the enrolled
// flag. Storage is synchronous and single-owner; there is exactly one
// logical reader/writer (the dispatcher's call chain), so no locking
// is layered on top.
//
// Each Put must survive power loss atomically: a crash mid-write may
// lose the update but must never leave an entry half-written. The
// file-backed implementation guarantees this with a write-to-temp and
// rename of the whole Borsh-encoded snapshot.
package store

import "errors"

// ErrIO marks a storage I/O failure. Callers treat any error wrapping
// ErrIO as fatal to the current operation rather than recoverable.
var ErrIO = errors.New("storage i/o failure")

// Store is durable key->bytes storage surviving power loss.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Put atomically writes the value for key.
	Put(key string, value []byte) error
}
