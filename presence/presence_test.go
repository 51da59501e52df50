package presence

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type delayedInput struct {
	remaining int
}

func (d *delayedInput) Pressed() bool {
	if d.remaining > 0 {
		d.remaining--
		return false
	}
	return true
}

func TestPollerWaitsForPress(t *testing.T) {
	input := &delayedInput{remaining: 3}
	gate := &Poller{Input: input, Interval: time.Millisecond}

	gate.WaitForPress()
	require.Zero(t, input.remaining)
}

func TestPollerAutoConfirmReturnsImmediately(t *testing.T) {
	gate := &Poller{Input: AutoConfirm{}, Interval: time.Hour}

	done := make(chan struct{})
	go func() {
		gate.WaitForPress()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto-confirm gate did not return")
	}
}

func TestGPIOInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")

	tests := []struct {
		name      string
		contents  string
		activeLow bool
		pressed   bool
	}{
		{"active low pressed", "0\n", true, true},
		{"active low released", "1\n", true, false},
		{"active high pressed", "1\n", false, true},
		{"active high released", "0\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o600))
			input := &GPIOInput{Path: path, ActiveLow: tt.activeLow}
			require.Equal(t, tt.pressed, input.Pressed())
		})
	}
}

func TestGPIOInputReadFailureReadsUnpressed(t *testing.T) {
	var logs bytes.Buffer
	input := &GPIOInput{
		Path: filepath.Join(t.TempDir(), "missing"),
		Log:  slog.New(slog.NewTextHandler(&logs, nil)),
	}

	require.False(t, input.Pressed())
	require.Contains(t, logs.String(), "gpio read failed")

	// Warned once, not once per poll.
	require.False(t, input.Pressed())
	require.Equal(t, 1, strings.Count(logs.String(), "gpio read failed"))
}

func TestGPIOInputWarnsAgainAfterRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	var logs bytes.Buffer
	input := &GPIOInput{Path: path, ActiveLow: true, Log: slog.New(slog.NewTextHandler(&logs, nil))}

	require.False(t, input.Pressed())

	require.NoError(t, os.WriteFile(path, []byte("0\n"), 0o600))
	require.True(t, input.Pressed())

	require.NoError(t, os.Remove(path))
	require.False(t, input.Pressed())
	require.Equal(t, 2, strings.Count(logs.String(), "gpio read failed"))
}

func TestSysfsValuePath(t *testing.T) {
	require.Equal(t, "/sys/class/gpio/gpio9/value", SysfsValuePath(9))
}
