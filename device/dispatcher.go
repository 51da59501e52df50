// Package device implements the command dispatcher: the line-protocol
// loop that ties the key custodian, the two-factor manager, and the
// presence gate together.
//
// The dispatcher is single-threaded and strictly sequential: it reads
// one newline-terminated command at a time and emits exactly one
// response line per non-empty command before reading the next. The
// only suspension points are the transport read (bounded by the
// transport's own timeout, where a timeout means "no data yet") and
// the presence wait inside SIGN (unbounded).
package device

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/unruggable/solana-signer/keyvault"
	"github.com/unruggable/solana-signer/otp"
	"github.com/unruggable/solana-signer/presence"
	"github.com/unruggable/solana-signer/solana"
	"github.com/unruggable/solana-signer/twofa"
)

// session is the in-memory unlock state. It is never persisted, so
// every boot starts locked.
type session struct {
	unlockedUntil uint64
}

func (s *session) locked(now uint64) bool {
	return now > s.unlockedUntil
}

// Dispatcher routes protocol lines to the device components.
type Dispatcher struct {
	transport io.ReadWriter
	vault     *keyvault.Keypair
	auth      *twofa.Manager
	gate      presence.Gate
	clock     Clock
	log       *slog.Logger

	twofaEnabled bool
	session      session
}

// Option adjusts a Dispatcher at construction.
type Option func(*Dispatcher)

// WithClock replaces the real-time clock, for tests and replay.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithTwoFADisabled turns the two-factor engine off: OTP commands
// answer ERROR:OTP_DISABLED and SIGN is gated by presence alone.
func WithTwoFADisabled() Option {
	return func(d *Dispatcher) { d.twofaEnabled = false }
}

// New creates a dispatcher over transport. The device boots locked
// regardless of any prior unlock.
func New(transport io.ReadWriter, vault *keyvault.Keypair, auth *twofa.Manager, gate presence.Gate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:    transport,
		vault:        vault,
		auth:         auth,
		gate:         gate,
		clock:        SystemClock{},
		log:          slog.Default(),
		twofaEnabled: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes commands until SHUTDOWN, transport end, or a storage
// failure. Responses are emitted in command order, one per command,
// with no pipelining. After SHUTDOWN_OK no further command is
// processed; only a restart resumes the device.
func (d *Dispatcher) Run() error {
	var line []byte
	buf := make([]byte, 1)

	for {
		n, err := d.transport.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Non-timeout transport faults are logged; the loop continues.
			d.log.Error("transport read failed", "err", err)
			continue
		}
		if n == 0 {
			// Read timeout: no data yet.
			continue
		}
		if buf[0] != '\n' {
			line = append(line, buf[0])
			continue
		}

		input := strings.TrimSpace(string(line))
		line = line[:0]
		if input == "" {
			continue
		}

		resp, halt, err := d.handle(input)
		if resp != "" {
			d.respond(resp)
		}
		if err != nil {
			d.log.Error("storage failure, halting", "err", err)
			return err
		}
		if halt {
			d.log.Info("shutdown requested, halting")
			return nil
		}
	}
}

// HandleLine processes one already-framed command line and returns its
// response line ("" for an empty command) and whether the device must
// halt. A non-nil error is a storage failure and is fatal.
func (d *Dispatcher) HandleLine(input string) (string, bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false, nil
	}
	return d.handle(input)
}

func (d *Dispatcher) handle(input string) (resp string, halt bool, err error) {
	switch {
	case input == "GET_PUBKEY":
		return "PUBKEY:" + d.vault.PublicBase58(), false, nil

	case input == "CREATE_TX":
		return d.handleCreateTx(), false, nil

	case input == "TX_INFO":
		return fmt.Sprintf("TX_INFO:memo='%s';blockhash=%s;program=%s",
			solana.PlaceholderMemo, solana.PlaceholderBlockhash, solana.MemoProgramAddress), false, nil

	case input == "OTP_BEGIN":
		resp, err = d.handleBegin()
		return resp, false, err

	case strings.HasPrefix(input, "OTP_CONFIRM:"):
		resp, err = d.handleConfirm(input[len("OTP_CONFIRM:"):])
		return resp, false, err

	case strings.HasPrefix(input, "OTP_UNLOCK:"):
		resp, err = d.handleUnlock(input[len("OTP_UNLOCK:"):])
		return resp, false, err

	case strings.HasPrefix(input, "SIGN:"):
		return d.handleSign(input[len("SIGN:"):]), false, nil

	case input == "SHUTDOWN":
		return "SHUTDOWN_OK", true, nil

	default:
		d.log.Debug("unknown command", "input", input)
		return "ERROR:Unknown command", false, nil
	}
}

func (d *Dispatcher) handleBegin() (string, error) {
	if !d.twofaEnabled {
		return "ERROR:OTP_DISABLED", nil
	}

	b32, err := d.auth.Begin()
	switch {
	case err == nil:
		return fmt.Sprintf("OTP_SECRET:%s;ALGO=SHA1;DIGITS=%d;PERIOD=%d", b32, otp.Digits, otp.Period), nil
	case errors.Is(err, twofa.ErrAlreadyEnrolled):
		return "ERROR:" + err.Error(), nil
	default:
		return "ERROR:STORAGE_FAILURE", err
	}
}

func (d *Dispatcher) handleConfirm(rest string) (string, error) {
	if !d.twofaEnabled {
		return "ERROR:OTP_DISABLED", nil
	}

	code, now := d.codeAndTime(rest)
	err := d.auth.Confirm(code, now)
	switch {
	case err == nil:
		return "OTP_CONFIRMED", nil
	case isAuthError(err):
		return "ERROR:OTP_BAD_CODE", nil
	default:
		return "ERROR:STORAGE_FAILURE", err
	}
}

func (d *Dispatcher) handleUnlock(rest string) (string, error) {
	if !d.twofaEnabled {
		return "ERROR:OTP_DISABLED", nil
	}

	code, now := d.codeAndTime(rest)
	until, err := d.auth.Unlock(code, now)
	switch {
	case err == nil:
		d.session.unlockedUntil = until
		return fmt.Sprintf("UNLOCKED_UNTIL:%d", until), nil
	case isAuthError(err):
		return "ERROR:OTP_BAD_CODE", nil
	default:
		return "ERROR:STORAGE_FAILURE", err
	}
}

func (d *Dispatcher) handleSign(rest string) string {
	if d.twofaEnabled && d.session.locked(d.clock.Now()) {
		return "ERROR:LOCKED"
	}

	message, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		// Never reaches the presence gate.
		return "ERROR:Invalid base64 encoding"
	}

	d.gate.WaitForPress()

	sig := d.vault.Sign(message)
	return "SIGNATURE:" + base64.StdEncoding.EncodeToString(sig)
}

func (d *Dispatcher) handleCreateTx() string {
	tx, err := solana.BuildMemoTransaction(d.vault)
	if err != nil {
		return fmt.Sprintf("ERROR:Transaction creation failed: %v", err)
	}
	return "TRANSACTION:" + base64.StdEncoding.EncodeToString(tx)
}

// codeAndTime splits "<code>[:<unix>...]". A present, parseable unix
// argument overrides the device clock; a malformed one is ignored.
func (d *Dispatcher) codeAndTime(rest string) (string, uint64) {
	parts := strings.Split(rest, ":")
	code := parts[0]
	now := d.clock.Now()
	if len(parts) > 1 {
		if ts, err := strconv.ParseUint(parts[1], 10, 64); err == nil {
			now = ts
		}
	}
	return code, now
}

// isAuthError reports whether err is a recoverable authorization
// failure; anything else on the OTP path is a storage fault.
func isAuthError(err error) bool {
	return errors.Is(err, twofa.ErrBadCode) ||
		errors.Is(err, twofa.ErrNotEnrolled) ||
		errors.Is(err, twofa.ErrAlreadyEnrolled) ||
		errors.Is(err, twofa.ErrSecretMissing)
}

// respond writes one response line, retrying partial writes.
func (d *Dispatcher) respond(resp string) {
	data := []byte(resp + "\n")
	for written := 0; written < len(data); {
		n, err := d.transport.Write(data[written:])
		if err != nil {
			d.log.Error("transport write failed", "err", err)
			return
		}
		written += n
	}
}
