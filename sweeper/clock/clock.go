// Package clock holds the blocking sleep used by the background workers.
//
// Worker loops never spin: every wait goes through a SleepFunc so tests can
// substitute a recording fake and the host simulator can cancel a sleeping
// worker through its context.
package clock

import (
	"context"
	"time"
)

// SleepFunc blocks for d or until ctx is done, whichever happens first.
// It returns ctx.Err() when the wait was cut short.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc. A nil or never-cancelled context makes it
// behave like time.Sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Done() == nil {
		time.Sleep(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
