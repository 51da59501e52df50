// Package presence implements the physical-presence gate: a sensitive
// operation proceeds only after a human asserts a digital input.
package presence

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultPollInterval matches the reference device's button poll rate.
const DefaultPollInterval = 200 * time.Millisecond

// Gate blocks until a human asserts physical presence.
type Gate interface {
	// WaitForPress returns only once presence is asserted. There is no
	// timeout; the only escape is a device reset.
	WaitForPress()
}

// Input reports the instantaneous state of a digital input.
type Input interface {
	Pressed() bool
}

// Poller is a Gate that polls an Input at a fixed interval.
type Poller struct {
	Input    Input
	Interval time.Duration
}

// WaitForPress polls until the input reports pressed. This is an
// intentional unbounded suspension.
func (p *Poller) WaitForPress() {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for !p.Input.Pressed() {
		time.Sleep(interval)
	}
}

// AutoConfirm is an Input that always reports pressed, for bench and
// headless setups where no button is wired.
type AutoConfirm struct{}

func (AutoConfirm) Pressed() bool { return true }

// GPIOInput reads a sysfs GPIO value file. Boot-style buttons pull the
// line to ground when pressed, so ActiveLow is usually true.
type GPIOInput struct {
	Path      string
	ActiveLow bool
	Log       *slog.Logger

	warned bool
}

// Pressed samples the input. A read failure reads as not pressed and
// is logged once, so a misconfigured pin is visible instead of looking
// like a button that is never pushed.
func (g *GPIOInput) Pressed() bool {
	raw, err := os.ReadFile(g.Path)
	if err != nil {
		if !g.warned {
			g.warned = true
			g.logger().Warn("gpio read failed, reading as not pressed", "path", g.Path, "err", err)
		}
		return false
	}
	g.warned = false
	v := strings.TrimSpace(string(raw))
	if g.ActiveLow {
		return v == "0"
	}
	return v == "1"
}

func (g *GPIOInput) logger() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}

// SysfsValuePath returns the sysfs value file for a GPIO pin number.
func SysfsValuePath(pin int) string {
	return fmt.Sprintf("/sys/class/gpio/gpio%d/value", pin)
}
