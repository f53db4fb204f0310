package radio

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/harveysanders/picosweep/sweeper/clock"
	"github.com/harveysanders/picosweep/sweeper/noise"
)

const (
	defaultHopDwell    = 50 * time.Millisecond
	defaultRangePause  = 500 * time.Millisecond
	defaultPayloadSize = 32
)

// DefaultPipeAddress is the writing pipe the sweeper opens on startup.
var DefaultPipeAddress = []byte("Node1")

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) func(*Sweeper) {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithRanges replaces DefaultRanges. The table is validated by Start.
func WithRanges(ranges []FrequencyRange) func(*Sweeper) {
	return func(s *Sweeper) {
		s.ranges = ranges
	}
}

// WithSleep replaces clock.Sleep.
func WithSleep(sleep clock.SleepFunc) func(*Sweeper) {
	return func(s *Sweeper) {
		s.sleep = sleep
	}
}

// WithNoise sets the payload source.
func WithNoise(src noise.Source) func(*Sweeper) {
	return func(s *Sweeper) {
		s.noise = src
	}
}

// WithObserver registers an observer for hops and completed ranges.
func WithObserver(obs Observer) func(*Sweeper) {
	return func(s *Sweeper) {
		s.observer = obs
	}
}

// WithHopDwell sets the pause after each channel (default 50ms).
func WithHopDwell(d time.Duration) func(*Sweeper) {
	return func(s *Sweeper) {
		s.hopDwell = d
	}
}

// WithRangePause sets the pause between ranges (default 500ms).
func WithRangePause(d time.Duration) func(*Sweeper) {
	return func(s *Sweeper) {
		s.rangePause = d
	}
}

// WithPipeAddress sets the writing pipe address (default "Node1").
func WithPipeAddress(addr []byte) func(*Sweeper) {
	return func(s *Sweeper) {
		s.pipeAddr = addr
	}
}

// WithPayloadSize sets the noise payload length (default 32).
func WithPayloadSize(n int) func(*Sweeper) {
	return func(s *Sweeper) {
		if n > 0 {
			s.payloadSize = n
		}
	}
}

// Sweeper owns a Transceiver and the sweep cursor.
type Sweeper struct {
	radio    Transceiver
	ranges   []FrequencyRange
	logger   *slog.Logger
	sleep    clock.SleepFunc
	noise    noise.Source
	observer Observer
	pipeAddr []byte

	hopDwell   time.Duration
	rangePause time.Duration

	payloadSize int
	cursor      atomic.Int32
	state       atomic.Uint32
}

// NewSweeper returns a Sweeper in StateInitializing with its cursor at 0.
func NewSweeper(radio Transceiver, options ...func(*Sweeper)) *Sweeper {
	s := Sweeper{
		radio:       radio,
		ranges:      DefaultRanges,
		sleep:       clock.Sleep,
		noise:       noise.Clock{},
		observer:    nopObserver{},
		pipeAddr:    DefaultPipeAddress,
		hopDwell:    defaultHopDwell,
		rangePause:  defaultRangePause,
		payloadSize: defaultPayloadSize,
	}
	for _, option := range options {
		option(&s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &s
}

// State returns the current lifecycle state.
func (s *Sweeper) State() State { return State(s.state.Load()) }

// Cursor returns the index of the range the next SweepRange will use.
func (s *Sweeper) Cursor() int { return int(s.cursor.Load()) }

// Ranges returns the range table.
func (s *Sweeper) Ranges() []FrequencyRange { return s.ranges }

// Run starts the sweeper and sweeps until ctx is done. It returns a
// *StartupError if startup fails and ctx.Err() after cancellation; with a
// context that is never cancelled it does not return after a good start.
// A transceiver implementing PowerDowner is powered down when Run returns.
func (s *Sweeper) Run(ctx context.Context) error {
	defer s.powerDown()
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.state.Store(uint32(StateSweeping))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SweepRange(ctx); err != nil {
			return err
		}
	}
}

func (s *Sweeper) powerDown() {
	pd, ok := s.radio.(PowerDowner)
	if !ok {
		return
	}
	if err := pd.PowerDown(); err != nil {
		s.logger.Warn("radio:power down failed", slog.String("err", err.Error()))
		return
	}
	s.logger.Info("radio:powered down")
}

// Start validates the range table, checks the transceiver and opens the
// writing pipe. On success the sweeper is Connected with its cursor at 0.
func (s *Sweeper) Start(ctx context.Context) error {
	s.state.Store(uint32(StateInitializing))
	s.cursor.Store(0)

	if err := ValidateRanges(s.ranges); err != nil {
		return s.fail("validate ranges", err)
	}

	s.logger.Info("radio:checking transceiver")
	ok, err := s.radio.IsConnected()
	if err != nil {
		return s.fail("connectivity check", err)
	}
	if !ok {
		return s.fail("connectivity check", ErrNotConnected)
	}
	s.logger.Info("radio:transceiver responding")

	if err := s.radio.OpenWritingPipe(s.pipeAddr); err != nil {
		return s.fail("open writing pipe", err)
	}
	if err := s.radio.StopListening(); err != nil {
		return s.fail("stop listening", err)
	}

	s.state.Store(uint32(StateConnected))
	s.logger.Info("radio:initialized",
		slog.Int("ranges", len(s.ranges)),
		slog.Int("payload", s.payloadSize),
	)
	return nil
}

func (s *Sweeper) fail(step string, err error) error {
	s.state.Store(uint32(StateFailed))
	s.logger.Error("radio:startup failed", slog.String("step", step), slog.String("err", err.Error()))
	return &StartupError{Step: step, Err: err}
}

// SweepRange walks every channel of the current range in ascending order,
// advances the cursor and pauses. Channel and transmit failures are logged
// and skipped. The only error returned is ctx's, when a pause was cut short.
func (s *Sweeper) SweepRange(ctx context.Context) error {
	idx := s.Cursor()
	r := s.ranges[idx]
	s.logger.Info("radio:switching range",
		slog.String("ghz", GHz(r.Start)+"-"+GHz(r.End)),
		slog.String("channels", r.String()),
		slog.Int("count", r.Channels()),
	)

	for c := int(r.Start); c <= int(r.End); c++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ch := uint8(c)
		if err := s.radio.SetChannel(ch); err != nil {
			s.logger.Error("radio:set channel failed", slog.Int("channel", c), slog.String("err", err.Error()))
			s.observer.ObserveHop(Hop{Range: idx, Channel: ch, Stage: StageSetChannel, Err: err})
			continue
		}

		payload := make([]byte, s.payloadSize)
		s.noise.Fill(payload)
		if err := s.radio.Write(payload); err != nil {
			s.logger.Error("radio:send failed", slog.Int("channel", c), slog.String("err", err.Error()))
			s.observer.ObserveHop(Hop{Range: idx, Channel: ch, Stage: StageWrite, Err: err, Payload: payload})
		} else {
			s.logger.Info("radio:sent noise",
				slog.Int("channel", c),
				slog.String("ghz", GHz(ch)),
				slog.String("head", hex.EncodeToString(payload[:min(8, len(payload))])),
			)
			s.observer.ObserveHop(Hop{Range: idx, Channel: ch, Stage: StageSent, Payload: payload})
		}

		if err := s.sleep(ctx, s.hopDwell); err != nil {
			return err
		}
	}

	s.cursor.Store(int32((idx + 1) % len(s.ranges)))
	s.observer.ObserveRange(idx, r)
	return s.sleep(ctx, s.rangePause)
}
