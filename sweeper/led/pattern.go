package led

import (
	"context"
	"errors"
	"time"

	"github.com/harveysanders/picosweep/sweeper/clock"
)

// Hue selects which channel of a Pair a pattern lights.
type Hue uint8

const (
	HueRed Hue = iota
	HueGreen
)

func (h Hue) String() string {
	if h == HueGreen {
		return "green"
	}
	return "red"
}

// Pattern is a fixed cadence on/off sequence. Steps = Duration/Interval.
type Pattern struct {
	Hue      Hue
	Duration time.Duration
	Interval time.Duration
}

// Patterns used by the scan indicator.
var (
	SuccessFlash = Pattern{Hue: HueGreen, Duration: 500 * time.Millisecond, Interval: 100 * time.Millisecond}
	FailureFlash = Pattern{Hue: HueRed, Duration: 500 * time.Millisecond, Interval: 100 * time.Millisecond}
	WaitingFlash = Pattern{Hue: HueRed, Duration: 10 * time.Second, Interval: time.Second}
)

// Steps returns floor(Duration/Interval), or 0 for a non-positive interval.
func (p Pattern) Steps() int {
	if p.Interval <= 0 || p.Duration <= 0 {
		return 0
	}
	return int(p.Duration / p.Interval)
}

// Flash runs p on pair: even steps light the pattern's hue at MaxDuty with the
// other channel off, odd steps turn both off, and each step is followed by a
// sleep of p.Interval. Both channels are forced off before Flash returns, also
// when ctx is cancelled mid-pattern.
//
// Write failures do not stop the pattern. The returned error is ctx.Err() if
// the pattern was cut short, otherwise the joined write errors.
func Flash(ctx context.Context, pair Pair, p Pattern, sleep clock.SleepFunc) error {
	if sleep == nil {
		sleep = clock.Sleep
	}
	var red, green uint32
	if p.Hue == HueGreen {
		green = MaxDuty
	} else {
		red = MaxDuty
	}

	var writeErr error
	var cancelled error
	for i := 0; i < p.Steps(); i++ {
		var err error
		if i%2 == 0 {
			err = pair.Set(red, green)
		} else {
			err = pair.Off()
		}
		if err != nil {
			writeErr = errors.Join(writeErr, err)
		}
		if err := sleep(ctx, p.Interval); err != nil {
			cancelled = err
			break
		}
	}

	if err := pair.Off(); err != nil {
		writeErr = errors.Join(writeErr, err)
	}
	if cancelled != nil {
		return cancelled
	}
	return writeErr
}
