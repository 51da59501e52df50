package keyvault

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/unruggable/solana-signer/store"
)

func TestLoadOrGenerateFirstBoot(t *testing.T) {
	st := store.NewMemory()

	kp, err := LoadOrGenerate(st)
	require.NoError(t, err)
	require.Len(t, kp.Public(), ed25519.PublicKeySize)

	seed, ok, err := st.Get("solana_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, seed, ed25519.SeedSize)
}

func TestLoadOrGenerateIsStable(t *testing.T) {
	st := store.NewMemory()

	first, err := LoadOrGenerate(st)
	require.NoError(t, err)

	// A second boot reconstructs the same key rather than generating.
	second, err := LoadOrGenerate(st)
	require.NoError(t, err)
	require.Equal(t, first.Public(), second.Public())
	require.Equal(t, first.PublicBase58(), second.PublicBase58())
}

func TestSignVerifiesUnderOwnKey(t *testing.T) {
	kp, err := LoadOrGenerate(store.NewMemory())
	require.NoError(t, err)

	message := []byte("hello from the signer")
	sig := kp.Sign(message)
	require.Len(t, sig, ed25519.SignatureSize)
	require.True(t, ed25519.Verify(kp.Public(), message, sig))
	require.False(t, ed25519.Verify(kp.Public(), []byte("tampered"), sig))
}

func TestPublicBase58RoundTrips(t *testing.T) {
	kp, err := LoadOrGenerate(store.NewMemory())
	require.NoError(t, err)

	decoded, err := base58.Decode(kp.PublicBase58())
	require.NoError(t, err)
	require.Equal(t, []byte(kp.Public()), decoded)
}

func TestLoadRejectsBadSeedLength(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Put("solana_key", []byte{1, 2, 3}))

	_, err := LoadOrGenerate(st)
	require.Error(t, err)
}
