// Package led models the three PWM driven LED channels shared by the HTTP
// color handler and the scan indicator.
//
// Each Channel has its own lock and every critical section is a single duty
// write. Writers are not queued or prioritised: whoever takes the lock first
// wins, and a color set over HTTP may be overwritten by the next indicator
// flash.
package led

import (
	"errors"
	"sync"
)

// MaxDuty is the full-intensity duty value. Higher values are clamped.
const MaxDuty = 255

var ErrInvalidColor = errors.New("invalid color: want 6 hex digits RRGGBB")

// DutySetter is the hardware side of a channel, e.g. a PWM slice output.
type DutySetter interface {
	SetDuty(duty uint32) error
}

// DutyFunc adapts a function to DutySetter.
type DutyFunc func(duty uint32) error

// SetDuty implements DutySetter.
func (f DutyFunc) SetDuty(duty uint32) error { return f(duty) }

// Channel is a single LED output behind an exclusive-access gate.
type Channel struct {
	name string
	mu   sync.Mutex
	out  DutySetter
	duty uint32
}

// NewChannel wraps out. name is used in logs and metrics.
func NewChannel(name string, out DutySetter) *Channel {
	return &Channel{name: name, out: out}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// SetDuty writes duty (clamped to MaxDuty) to the output. The stored value is
// only updated when the write succeeds.
func (c *Channel) SetDuty(duty uint32) error {
	if duty > MaxDuty {
		duty = MaxDuty
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.out.SetDuty(duty); err != nil {
		return errors.New(c.name + " led:" + err.Error())
	}
	c.duty = duty
	return nil
}

// Duty returns the last successfully written duty.
func (c *Channel) Duty() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty
}

// Color is an 8-bit per channel RGB triple.
type Color struct {
	R, G, B uint8
}

// ParseHex parses exactly six ASCII hex digits "RRGGBB". Case is ignored.
func ParseHex(s string) (Color, error) {
	if len(s) != 6 {
		return Color{}, ErrInvalidColor
	}
	var v [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := unhex(s[2*i])
		lo, ok2 := unhex(s[2*i+1])
		if !ok1 || !ok2 {
			return Color{}, ErrInvalidColor
		}
		v[i] = hi<<4 | lo
	}
	return Color{R: v[0], G: v[1], B: v[2]}, nil
}

// Hex formats c as "RRGGBB" in upper case.
func (c Color) Hex() string {
	const digits = "0123456789ABCDEF"
	b := [6]byte{
		digits[c.R>>4], digits[c.R&0xf],
		digits[c.G>>4], digits[c.G&0xf],
		digits[c.B>>4], digits[c.B&0xf],
	}
	return string(b[:])
}

func unhex(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// RGB groups the three shared channels.
type RGB struct {
	Red   *Channel
	Green *Channel
	Blue  *Channel
}

// SetColor writes red, green then blue, each under its own lock. There is no
// atomicity across channels. All three writes are attempted even if one fails.
func (l *RGB) SetColor(c Color) error {
	return errors.Join(
		l.Red.SetDuty(uint32(c.R)),
		l.Green.SetDuty(uint32(c.G)),
		l.Blue.SetDuty(uint32(c.B)),
	)
}

// Color returns the last written duties as a Color.
func (l *RGB) Color() Color {
	return Color{R: uint8(l.Red.Duty()), G: uint8(l.Green.Duty()), B: uint8(l.Blue.Duty())}
}

// Pair returns the red/green view used for status flashes.
func (l *RGB) Pair() Pair {
	return Pair{Red: l.Red, Green: l.Green}
}

// Pair is the red/green subset of the channels.
type Pair struct {
	Red   *Channel
	Green *Channel
}

// Set writes red then green.
func (p Pair) Set(red, green uint32) error {
	return errors.Join(p.Red.SetDuty(red), p.Green.SetDuty(green))
}

// Off turns both channels off.
func (p Pair) Off() error { return p.Set(0, 0) }
