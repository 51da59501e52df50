// Package twofa manages two-factor enrollment and the unlock session.
//
// Enrollment lifecycle:
//
//	Unenrolled -> (Begin) -> PendingConfirmation -> (Confirm ok) -> Locked
//	Locked -> (Unlock ok) -> Unlocked(until) -> (time passes / reboot) -> Locked
//
// Only the secret, the last accepted step, and the enrolled flag are
// persisted. The unlock deadline lives in the dispatcher's session and
// dies with it, so every boot starts Locked.
//
// Atomicity contract: a failed verification performs no persisted
// mutation; only a successful verification writes.
package twofa

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/unruggable/solana-signer/otp"
	"github.com/unruggable/solana-signer/store"
)

// UnlockSecs is how long a successful Unlock authorizes signing.
const UnlockSecs = 120

var (
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrNotEnrolled     = errors.New("not enrolled")
	ErrSecretMissing   = errors.New("secret missing")
	ErrBadCode         = errors.New("bad code")
)

// Store entry names, shared with the reference device.
const (
	secretKey   = "otp_secret"   // raw 20 bytes
	lastStepKey = "otp_last"     // u64, little-endian
	enrolledKey = "otp_enrolled" // 1 byte, 0 or 1
)

// State is the persisted-visible enrollment state. The Unlocked state
// additionally depends on the in-memory session deadline held by the
// dispatcher.
type State int

const (
	Unenrolled State = iota
	PendingConfirmation
	Locked
)

func (s State) String() string {
	switch s {
	case Unenrolled:
		return "unenrolled"
	case PendingConfirmation:
		return "pending-confirmation"
	case Locked:
		return "locked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager owns the persisted 2FA secret and counters.
type Manager struct {
	store store.Store
}

// NewManager creates a manager backed by s.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// Begin starts enrollment: it generates a fresh secret, resets the
// last accepted step, and persists both with the enrolled flag
// cleared. It returns the secret Base32-encoded (upper case, no
// padding) for provisioning display.
//
// Begin fails with ErrAlreadyEnrolled once enrollment has completed,
// leaving all persisted state untouched. There is no re-enrollment or
// factory-reset path after that.
func (m *Manager) Begin() (string, error) {
	enrolled, err := m.IsEnrolled()
	if err != nil {
		return "", err
	}
	if enrolled {
		return "", ErrAlreadyEnrolled
	}

	secret := make([]byte, otp.SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate otp secret: %w", err)
	}

	if err := m.store.Put(secretKey, secret); err != nil {
		return "", err
	}
	if err := m.putUint64(lastStepKey, 0); err != nil {
		return "", err
	}
	if err := m.putBool(enrolledKey, false); err != nil {
		return "", err
	}

	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret), nil
}

// Confirm completes enrollment by verifying one code at now. On
// success it persists the accepted step and sets the enrolled flag.
func (m *Manager) Confirm(code string, now uint64) error {
	secret, err := m.secret()
	if err != nil {
		return err
	}
	if secret == nil {
		return ErrSecretMissing
	}

	last, err := m.lastStep()
	if err != nil {
		return err
	}

	step, ok := otp.Verify(code, secret, now, last)
	if !ok {
		return ErrBadCode
	}

	if err := m.putUint64(lastStepKey, step); err != nil {
		return err
	}
	return m.putBool(enrolledKey, true)
}

// Unlock verifies one code at now and, on success, persists the
// accepted step and returns the session deadline now+UnlockSecs.
func (m *Manager) Unlock(code string, now uint64) (uint64, error) {
	enrolled, err := m.IsEnrolled()
	if err != nil {
		return 0, err
	}
	if !enrolled {
		return 0, ErrNotEnrolled
	}

	secret, err := m.secret()
	if err != nil {
		return 0, err
	}
	if secret == nil {
		return 0, ErrSecretMissing
	}

	last, err := m.lastStep()
	if err != nil {
		return 0, err
	}

	step, ok := otp.Verify(code, secret, now, last)
	if !ok {
		return 0, ErrBadCode
	}

	if err := m.putUint64(lastStepKey, step); err != nil {
		return 0, err
	}
	return now + UnlockSecs, nil
}

// IsEnrolled reports whether enrollment has completed.
func (m *Manager) IsEnrolled() (bool, error) {
	raw, ok, err := m.store.Get(enrolledKey)
	if err != nil {
		return false, err
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

// State derives the persisted enrollment state. A freshly booted
// device is at most Locked; Unlocked is never persisted.
func (m *Manager) State() (State, error) {
	enrolled, err := m.IsEnrolled()
	if err != nil {
		return Unenrolled, err
	}
	if enrolled {
		return Locked, nil
	}

	secret, err := m.secret()
	if err != nil {
		return Unenrolled, err
	}
	if secret != nil {
		return PendingConfirmation, nil
	}
	return Unenrolled, nil
}

func (m *Manager) secret() ([]byte, error) {
	raw, ok, err := m.store.Get(secretKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) != otp.SecretSize {
		return nil, nil
	}
	return raw, nil
}

func (m *Manager) lastStep() (uint64, error) {
	raw, ok, err := m.store.Get(lastStepKey)
	if err != nil {
		return 0, err
	}
	if !ok || len(raw) != 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (m *Manager) putUint64(key string, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.store.Put(key, b[:])
}

func (m *Manager) putBool(key string, v bool) error {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	return m.store.Put(key, b)
}
