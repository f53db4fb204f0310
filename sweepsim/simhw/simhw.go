// Package simhw provides in-memory stand-ins for the board hardware so the
// workers can run on a host.
package simhw

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/harveysanders/picosweep/sweeper/radio"
	"github.com/harveysanders/picosweep/sweeper/scan"
)

var (
	ErrSetChannel = errors.New("simulated set-channel failure")
	ErrWrite      = errors.New("simulated write failure")
	ErrScan       = errors.New("simulated scan failure")
	ErrPoweredOff = errors.New("radio powered down")
)

// Faults sets the failure probabilities of the simulated radio.
type Faults struct {
	SetChannelFailRate float64
	WriteFailRate      float64
	Disconnected       bool
}

// Radio is a simulated transceiver implementing radio.Transceiver.
type Radio struct {
	mu      sync.Mutex
	faults  Faults
	rng     *rand.Rand
	logger  *slog.Logger
	channel uint8
	pipe    []byte
	sent    uint64
	off     bool
}

// NewRadio returns a Radio whose failures are drawn from a PCG seeded with
// seed.
func NewRadio(faults Faults, seed uint64, logger *slog.Logger) *Radio {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Radio{
		faults: faults,
		rng:    rand.New(rand.NewPCG(seed, seed^0x5eed)),
		logger: logger,
	}
}

// SetChannel implements radio.Transceiver.
func (r *Radio) SetChannel(ch uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch > radio.MaxChannel {
		return radio.ErrInvalidRange
	}
	if r.rng.Float64() < r.faults.SetChannelFailRate {
		return ErrSetChannel
	}
	r.channel = ch
	return nil
}

// Write implements radio.Transceiver.
func (r *Radio) Write(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.off {
		return ErrPoweredOff
	}
	if r.rng.Float64() < r.faults.WriteFailRate {
		return ErrWrite
	}
	r.sent++
	r.logger.Debug("simhw:tx",
		slog.Int("channel", int(r.channel)),
		slog.String("pipe", string(r.pipe)),
		slog.String("payload", hex.EncodeToString(payload)),
	)
	return nil
}

// IsConnected implements radio.Transceiver.
func (r *Radio) IsConnected() (bool, error) {
	return !r.faults.Disconnected, nil
}

// OpenWritingPipe implements radio.Transceiver.
func (r *Radio) OpenWritingPipe(addr []byte) error {
	r.mu.Lock()
	r.pipe = append(r.pipe[:0], addr...)
	r.mu.Unlock()
	return nil
}

// StopListening implements radio.Transceiver.
func (r *Radio) StopListening() error { return nil }

// PowerDown implements radio.PowerDowner. Writes fail afterwards.
func (r *Radio) PowerDown() error {
	r.mu.Lock()
	r.off = true
	r.mu.Unlock()
	r.logger.Info("simhw:powered down", slog.Uint64("sent", r.Sent()))
	return nil
}

// Channel returns the last tuned channel.
func (r *Radio) Channel() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// Sent returns the number of successful writes.
func (r *Radio) Sent() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Scanner returns the placeholder networks, failing with probability
// failRate.
type Scanner struct {
	mu       sync.Mutex
	failRate float64
	rng      *rand.Rand
}

// NewScanner returns a Scanner seeded with seed.
func NewScanner(failRate float64, seed uint64) *Scanner {
	return &Scanner{failRate: failRate, rng: rand.New(rand.NewPCG(seed, ^seed))}
}

// Scan implements scan.Scanner.
func (s *Scanner) Scan(ctx context.Context) ([]scan.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	fail := s.rng.Float64() < s.failRate
	s.mu.Unlock()
	if fail {
		return nil, ErrScan
	}
	return scan.Placeholder{}.Scan(ctx)
}

// LED is a duty output that logs every write and forwards it to OnDuty.
type LED struct {
	Name   string
	Logger *slog.Logger
	OnDuty func(name string, duty uint32)
}

// SetDuty implements led.DutySetter.
func (l *LED) SetDuty(duty uint32) error {
	if l.Logger != nil {
		l.Logger.Debug("simhw:led", slog.String("led", l.Name), slog.Uint64("duty", uint64(duty)))
	}
	if l.OnDuty != nil {
		l.OnDuty(l.Name, duty)
	}
	return nil
}
