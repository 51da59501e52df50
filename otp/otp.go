// Package otp implements the one-time-code engine: HOTP (RFC 4226)
// computation and windowed TOTP (RFC 6238) verification.
//
// Compute is pure: identical (secret, counter) inputs always yield the
// identical 6-digit zero-padded code.
//
// Verify checks the candidate steps around the current period in the
// fixed order stepNow-1, stepNow, stepNow+1. A candidate equal to the
// last accepted step is skipped outright, so an already-used code can
// never be replayed, even while it is still inside the drift window.
// Code comparison is constant-time.
package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

const (
	// SecretSize is the raw shared-secret length in bytes.
	SecretSize = 20
	// Digits is the decimal code length.
	Digits = 6
	// Period is the TOTP step length in seconds.
	Period = 30
	// Window is the accepted clock drift in steps on each side of now.
	Window = 1
)

// Compute returns the HOTP code for secret at counter: HMAC-SHA1 over
// the big-endian counter, dynamic truncation, mod 10^6, zero-padded.
func Compute(secret []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	off := digest[len(digest)-1] & 0x0f
	dbc := uint32(digest[off]&0x7f)<<24 |
		uint32(digest[off+1])<<16 |
		uint32(digest[off+2])<<8 |
		uint32(digest[off+3])

	return fmt.Sprintf("%06d", dbc%1_000_000)
}

// Verify checks code against the steps within Window of now/Period,
// skipping lastStep. It returns the accepted step and true on a match.
//
// Malformed codes (not exactly 6 ASCII digits) are rejected before any
// HMAC is computed. The comparison against each candidate code is
// constant-time; do not replace it with ordinary string equality.
func Verify(code string, secret []byte, now, lastStep uint64) (uint64, bool) {
	if len(code) != Digits {
		return 0, false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return 0, false
		}
	}

	stepNow := now / Period
	for w := int64(-Window); w <= Window; w++ {
		step := stepNow + uint64(w) // wraps below step 0, matching the reference device
		if step == lastStep {
			continue // replay guard
		}
		expected := Compute(secret, step)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}
