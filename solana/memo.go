// Package solana builds the device's placeholder memo transaction and
// offers a minimal, non-authoritative introspection helper for
// serialized transaction messages. It is deliberately not a general
// Solana transaction engine.
package solana

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// PlaceholderBlockhash is a fixed, valid base58 32-byte hash used as
// the recent blockhash of placeholder transactions.
const PlaceholderBlockhash = "11111111111111111111111111111112"

// PlaceholderMemo is the instruction data of the placeholder
// transaction.
const PlaceholderMemo = "Hello from ESP32 Solana Signer!"

// MemoProgramAddress is the Solana memo program,
// MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr.
const MemoProgramAddress = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

// MemoProgramID is MemoProgramAddress decoded to raw bytes.
var MemoProgramID = [32]byte{
	5, 74, 83, 90, 153, 41, 33, 6, 77, 36, 232, 113, 96, 218, 56, 124,
	124, 53, 181, 221, 188, 146, 187, 129, 228, 31, 168, 64, 65, 5, 68, 141,
}

// Signer is the slice of the key custodian the builder needs.
type Signer interface {
	Sign(message []byte) []byte
	Public() ed25519.PublicKey
}

// BuildMemoTransaction creates a complete placeholder transaction
// carrying PlaceholderMemo, signed by signer, in the legacy Solana
// wire format (signature count, signatures, then the message).
func BuildMemoTransaction(signer Signer) ([]byte, error) {
	blockhash, err := base58.Decode(PlaceholderBlockhash)
	if err != nil {
		return nil, fmt.Errorf("invalid blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("blockhash must be 32 bytes, got %d", len(blockhash))
	}

	pubkey := signer.Public()

	var message []byte

	// Header: one required signature, no readonly signed accounts, one
	// readonly unsigned account (the memo program).
	message = append(message, 1, 0, 1)

	// Account addresses, compact-array encoded.
	message = append(message, 2)
	message = append(message, pubkey...)
	message = append(message, MemoProgramID[:]...)

	message = append(message, blockhash...)

	// One instruction: memo program (index 1), one account (the
	// signer), then the memo bytes.
	message = append(message, 1)
	message = append(message, 1, 1, 0)
	message = append(message, byte(len(PlaceholderMemo)))
	message = append(message, PlaceholderMemo...)

	// Solana signs the raw message bytes; Ed25519 hashes internally.
	sig := signer.Sign(message)

	tx := make([]byte, 0, 1+len(sig)+len(message))
	tx = append(tx, 1)
	tx = append(tx, sig...)
	tx = append(tx, message...)

	return tx, nil
}
