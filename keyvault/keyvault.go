// Package keyvault owns the device's single Ed25519 signing key.
//
// The key is loaded from the persistent store on boot, or generated
// from a cryptographically secure source and persisted on first boot.
// There is no rotation path: losing the stored seed is equivalent to
// losing the custodied funds.
package keyvault

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/unruggable/solana-signer/store"
)

// seedKey is the store entry holding the raw 32-byte seed.
const seedKey = "solana_key"

// Keypair is the custodied signing key and its cached public key.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// LoadOrGenerate reads the seed from the store, or draws a fresh one
// and persists it when absent. It is the only mutating operation on
// the custodian.
func LoadOrGenerate(s store.Store) (*Keypair, error) {
	seed, ok, err := s.Get(seedKey)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	if !ok {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		if err := s.Put(seedKey, seed); err != nil {
			return nil, fmt.Errorf("persist signing key: %w", err)
		}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("stored signing key is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Sign returns the 64-byte Ed25519 signature over message. The message
// is signed as-is; Ed25519 performs its own internal hashing.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Public returns the cached 32-byte public key.
func (k *Keypair) Public() ed25519.PublicKey {
	return k.pub
}

// PublicBase58 returns the public key as a base58 string, the form
// Solana tooling expects.
func (k *Keypair) PublicBase58() string {
	return base58.Encode(k.pub)
}
