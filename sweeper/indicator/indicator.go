// Package indicator runs the scan-and-indicate loop: scan for networks, flash
// the outcome on the red/green LEDs, then blink red while waiting for the next
// scan.
package indicator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/picosweep/sweeper/clock"
	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/scan"
)

// Worker is the scan indicator. Scanner and LEDs are required; the remaining
// fields have defaults.
type Worker struct {
	Scanner scan.Scanner
	LEDs    led.Pair
	Logger  *slog.Logger
	Sleep   clock.SleepFunc
	Now     func() time.Time

	Success led.Pattern // zero value means led.SuccessFlash
	Failure led.Pattern // zero value means led.FailureFlash
	Waiting led.Pattern // zero value means led.WaitingFlash

	// Reports, when set, receives one report per scan. Sends never block;
	// reports are dropped if the channel is full.
	Reports chan<- scan.Report
}

// Run scans forever. It only returns when ctx is done, with ctx.Err().
// Scan failures are visual events and never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger().Info("scan:worker started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Step(ctx); err != nil {
			return err
		}
	}
}

// Step performs one scan/flash/wait cycle. It returns a non-nil error only
// when ctx was cancelled during the cycle.
func (w *Worker) Step(ctx context.Context) error {
	logger := w.logger()
	logger.Info("scan:start")

	networks, err := w.Scanner.Scan(ctx)
	if err == nil && len(networks) == 0 {
		err = scan.ErrNoNetworks
	}
	w.report(scan.NewReport(w.now(), networks, err))

	flash := w.Success
	if flash == (led.Pattern{}) {
		flash = led.SuccessFlash
	}
	if err != nil {
		logger.Error("scan:failed", slog.String("err", err.Error()))
		flash = w.Failure
		if flash == (led.Pattern{}) {
			flash = led.FailureFlash
		}
	} else {
		logger.Info("scan:done", slog.Int("count", len(networks)))
		for i, n := range networks {
			logger.Info("scan:network",
				slog.Int("n", i+1),
				slog.String("ssid", n.Label()),
				slog.Int("rssi", int(n.RSSI)),
			)
		}
	}

	if err := w.flash(ctx, flash); err != nil {
		return err
	}

	waiting := w.Waiting
	if waiting == (led.Pattern{}) {
		waiting = led.WaitingFlash
	}
	logger.Info("scan:waiting", slog.Duration("for", waiting.Duration))
	return w.flash(ctx, waiting)
}

// flash runs p and logs LED write failures. Only cancellation is returned.
func (w *Worker) flash(ctx context.Context, p led.Pattern) error {
	err := led.Flash(ctx, w.LEDs, p, w.sleep())
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	w.logger().Warn("scan:led write failed", slog.String("hue", p.Hue.String()), slog.String("err", err.Error()))
	return nil
}

func (w *Worker) report(r scan.Report) {
	if w.Reports == nil {
		return
	}
	select {
	case w.Reports <- r:
	default:
		w.logger().Debug("scan:report dropped")
	}
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		w.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return w.Logger
}

func (w *Worker) sleep() clock.SleepFunc {
	if w.Sleep == nil {
		return clock.Sleep
	}
	return w.Sleep
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}
