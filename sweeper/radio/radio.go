// Package radio drives a 2.4 GHz transceiver through a cyclic sweep of
// channel ranges, transmitting a fresh noise payload on every channel.
//
// A Sweeper is started once: the range table is validated, the transceiver
// must answer a connectivity check and accept its pipe setup. Any of those
// failing is fatal for the sweeper, and it is not retried. Once sweeping,
// per-channel failures are logged and skipped and the loop runs for the life
// of the process unless the caller cancels its context.
package radio

import (
	"errors"
	"strconv"
)

// MaxChannel is the highest RF channel of an nRF24L01 (2.525 GHz).
const MaxChannel = 125

var (
	ErrNotConnected = errors.New("transceiver not responding")
	ErrNoRanges     = errors.New("empty range table")
	ErrInvalidRange = errors.New("invalid frequency range")
)

// Transceiver is the radio driver the sweeper needs. Every call may fail.
type Transceiver interface {
	SetChannel(ch uint8) error
	Write(payload []byte) error
	IsConnected() (bool, error)
	OpenWritingPipe(addr []byte) error
	StopListening() error
}

// PowerDowner is implemented by transceivers with a low power state.
type PowerDowner interface {
	PowerDown() error
}

// FrequencyRange is an inclusive span of logical channels.
type FrequencyRange struct {
	Start uint8 `yaml:"start" json:"start"`
	End   uint8 `yaml:"end" json:"end"`
}

// DefaultRanges are five overlapping 20-channel windows, 2.402 to 2.442 GHz.
var DefaultRanges = []FrequencyRange{
	{Start: 2, End: 22},
	{Start: 7, End: 27},
	{Start: 12, End: 32},
	{Start: 17, End: 37},
	{Start: 22, End: 42},
}

// Channels returns how many channels r covers.
func (r FrequencyRange) Channels() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End) - int(r.Start) + 1
}

// Validate checks Start <= End <= MaxChannel.
func (r FrequencyRange) Validate() error {
	if r.Start > r.End || r.End > MaxChannel {
		return errors.New(ErrInvalidRange.Error() + " " + r.String())
	}
	return nil
}

// String formats r as "2-22".
func (r FrequencyRange) String() string {
	return strconv.Itoa(int(r.Start)) + "-" + strconv.Itoa(int(r.End))
}

// FrequencyMHz returns the carrier of channel ch: 2400 MHz + ch.
func FrequencyMHz(ch uint8) int {
	return 2400 + int(ch)
}

// GHz formats the carrier of ch with MHz precision, e.g. "2.402".
func GHz(ch uint8) string {
	return strconv.FormatFloat(float64(FrequencyMHz(ch))/1000, 'f', 3, 64)
}

// ValidateRanges checks a whole range table.
func ValidateRanges(ranges []FrequencyRange) error {
	if len(ranges) == 0 {
		return ErrNoRanges
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// State is the sweeper lifecycle state.
type State uint32

const (
	StateInitializing State = iota
	StateConnected
	StateSweeping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StateSweeping:
		return "sweeping"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StartupError reports which startup step failed.
type StartupError struct {
	Step string
	Err  error
}

func (e *StartupError) Error() string { return "radio startup: " + e.Step + ": " + e.Err.Error() }

func (e *StartupError) Unwrap() error { return e.Err }

// Stage is how far a channel hop got.
type Stage uint8

const (
	StageSetChannel Stage = iota // failed to tune
	StageWrite                   // tuned, transmit failed
	StageSent                    // transmitted
)

func (s Stage) String() string {
	switch s {
	case StageSetChannel:
		return "set_channel"
	case StageWrite:
		return "write"
	case StageSent:
		return "sent"
	}
	return "unknown"
}

// Hop is the outcome of one channel step.
type Hop struct {
	Range   int
	Channel uint8
	Stage   Stage
	Err     error
	// Payload is the noise generated for this hop. Each hop gets its own
	// buffer; observers may keep it.
	Payload []byte
}

// Observer receives sweep events. Calls happen on the sweeper goroutine and
// must not block.
type Observer interface {
	ObserveHop(h Hop)
	ObserveRange(index int, r FrequencyRange)
}

type nopObserver struct{}

func (nopObserver) ObserveHop(Hop)                   {}
func (nopObserver) ObserveRange(int, FrequencyRange) {}

// Observers fans events out to several observers.
type Observers []Observer

// ObserveHop implements Observer.
func (o Observers) ObserveHop(h Hop) {
	for _, obs := range o {
		obs.ObserveHop(h)
	}
}

// ObserveRange implements Observer.
func (o Observers) ObserveRange(index int, r FrequencyRange) {
	for _, obs := range o {
		obs.ObserveRange(index, r)
	}
}
