// Package status turns worker activity into LCD lines and MQTT events.
//
// Everything here is fire-and-forget: sends never block the workers and
// messages are dropped when a consumer falls behind.
package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/harveysanders/picosweep/sweeper/lcd"
	"github.com/harveysanders/picosweep/sweeper/radio"
	"github.com/harveysanders/picosweep/sweeper/scan"
)

// Event kinds.
const (
	KindScan  = "scan"
	KindRange = "range"
)

// Event is the JSON document published for each status change.
type Event struct {
	Kind  string        `json:"kind"`
	Time  time.Time     `json:"time"`
	Scan  *scan.Report  `json:"scan,omitempty"`
	Range *RangeSummary `json:"range,omitempty"`
}

// RangeSummary counts hop outcomes for one completed range.
type RangeSummary struct {
	Index       int   `json:"index"`
	Start       uint8 `json:"start"`
	End         uint8 `json:"end"`
	Sent        int   `json:"sent"`
	SetFailed   int   `json:"set_failed"`
	WriteFailed int   `json:"write_failed"`
}

// Reporter forwards status to the LCD and the MQTT publisher. Either output
// may be nil. The radio observer methods and ObserveScan may run on
// different goroutines; the hop counters belong to the radio side.
type Reporter struct {
	LCD     chan<- lcd.Message
	Publish chan<- []byte
	Logger  *slog.Logger
	Now     func() time.Time

	current RangeSummary
}

// ObserveHop implements radio.Observer.
func (r *Reporter) ObserveHop(h radio.Hop) {
	switch h.Stage {
	case radio.StageSent:
		r.current.Sent++
	case radio.StageSetChannel:
		r.current.SetFailed++
	case radio.StageWrite:
		r.current.WriteFailed++
	}
}

// ObserveRange implements radio.Observer.
func (r *Reporter) ObserveRange(index int, fr radio.FrequencyRange) {
	sum := r.current
	sum.Index, sum.Start, sum.End = index, fr.Start, fr.End
	r.current = RangeSummary{}

	lcd.Send(r.LCD,
		"Sweep "+fr.String(),
		"ok "+strconv.Itoa(sum.Sent)+" err "+strconv.Itoa(sum.SetFailed+sum.WriteFailed),
	)
	r.publish(Event{Kind: KindRange, Time: r.now(), Range: &sum})
}

// ObserveScan forwards one scan report.
func (r *Reporter) ObserveScan(rep scan.Report) {
	if rep.OK {
		line2 := ""
		if best, ok := scan.Strongest(rep.Networks); ok {
			line2 = best.Label() + " " + strconv.Itoa(int(best.RSSI))
		}
		lcd.Send(r.LCD, "Scan OK "+strconv.Itoa(rep.Count)+" nets", line2)
	} else {
		lcd.Send(r.LCD, "Scan FAILED", rep.Error)
	}
	r.publish(Event{Kind: KindScan, Time: rep.Time, Scan: &rep})
}

// Scans forwards reports until ctx is done or reports is closed.
func (r *Reporter) Scans(ctx context.Context, reports <-chan scan.Report) {
	for {
		select {
		case <-ctx.Done():
			return
		case rep, ok := <-reports:
			if !ok {
				return
			}
			r.ObserveScan(rep)
		}
	}
}

func (r *Reporter) publish(e Event) {
	if r.Publish == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger().Error("status:marshal-failed", slog.String("err", err.Error()))
		return
	}
	select {
	case r.Publish <- payload:
	default:
		r.logger().Debug("status:event dropped", slog.String("kind", e.Kind))
	}
}

func (r *Reporter) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

var discard = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.Level(127),
}))

func (r *Reporter) logger() *slog.Logger {
	if r.Logger == nil {
		return discard
	}
	return r.Logger
}
