package simhw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/radio"
)

func TestRadioNoFaults(t *testing.T) {
	r := NewRadio(Faults{}, 1, nil)
	ok, err := r.IsConnected()
	if !ok || err != nil {
		t.Fatalf("IsConnected = %v, %v", ok, err)
	}
	for ch := uint8(0); ch <= radio.MaxChannel; ch++ {
		if err := r.SetChannel(ch); err != nil {
			t.Fatalf("SetChannel(%d): %v", ch, err)
		}
		if err := r.Write(make([]byte, 32)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if r.Sent() != radio.MaxChannel+1 {
		t.Errorf("sent = %d", r.Sent())
	}
	if r.Channel() != radio.MaxChannel {
		t.Errorf("channel = %d", r.Channel())
	}
	if err := r.SetChannel(radio.MaxChannel + 1); err == nil {
		t.Error("expected error above MaxChannel")
	}
}

func TestRadioAlwaysFails(t *testing.T) {
	r := NewRadio(Faults{SetChannelFailRate: 1, WriteFailRate: 1, Disconnected: true}, 1, nil)
	if ok, _ := r.IsConnected(); ok {
		t.Error("expected disconnected")
	}
	if err := r.SetChannel(5); !errors.Is(err, ErrSetChannel) {
		t.Errorf("SetChannel = %v", err)
	}
	if err := r.Write([]byte{1}); !errors.Is(err, ErrWrite) {
		t.Errorf("Write = %v", err)
	}
	if r.Sent() != 0 {
		t.Errorf("sent = %d", r.Sent())
	}
}

func TestSweeperOverSimulatedRadio(t *testing.T) {
	r := NewRadio(Faults{WriteFailRate: 0.5}, 42, nil)
	var hops, sent int
	obs := observerFunc(func(h radio.Hop) {
		hops++
		if h.Stage == radio.StageSent {
			sent++
		}
	})
	s := radio.NewSweeper(r,
		radio.WithRanges([]radio.FrequencyRange{{Start: 0, End: 99}}),
		radio.WithSleep(func(context.Context, time.Duration) error { return nil }),
		radio.WithObserver(obs),
	)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.SweepRange(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hops != 100 {
		t.Errorf("hops = %d, want 100", hops)
	}
	if sent == 0 || sent == 100 || uint64(sent) != r.Sent() {
		t.Errorf("sent = %d, radio sent = %d", sent, r.Sent())
	}
}

func TestRunPowersDownOnCancel(t *testing.T) {
	r := NewRadio(Faults{}, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	hops := 0
	s := radio.NewSweeper(r,
		radio.WithRanges([]radio.FrequencyRange{{Start: 1, End: 5}}),
		radio.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		radio.WithObserver(observerFunc(func(radio.Hop) {
			if hops++; hops == 7 {
				cancel()
			}
		})),
	)
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if err := r.Write([]byte{1}); !errors.Is(err, ErrPoweredOff) {
		t.Errorf("Write after Run = %v, want ErrPoweredOff", err)
	}
	if r.Sent() != 7 {
		t.Errorf("sent = %d, want 7", r.Sent())
	}
}

func TestScanner(t *testing.T) {
	ok := NewScanner(0, 1)
	nets, err := ok.Scan(context.Background())
	if err != nil || len(nets) != 3 {
		t.Errorf("Scan = %v, %v", nets, err)
	}

	bad := NewScanner(1, 1)
	if _, err := bad.Scan(context.Background()); !errors.Is(err, ErrScan) {
		t.Errorf("Scan err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ok.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Scan err = %v", err)
	}
}

func TestLEDForwardsDuty(t *testing.T) {
	var got []uint32
	out := &LED{Name: "red", OnDuty: func(name string, d uint32) {
		if name != "red" {
			t.Errorf("name = %q", name)
		}
		got = append(got, d)
	}}
	ch := led.NewChannel("red", out)
	if err := ch.SetDuty(300); err != nil {
		t.Fatal(err)
	}
	if err := ch.SetDuty(7); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != led.MaxDuty || got[1] != 7 {
		t.Errorf("duties = %v", got)
	}
}

type observerFunc func(radio.Hop)

func (f observerFunc) ObserveHop(h radio.Hop)                 { f(h) }
func (f observerFunc) ObserveRange(int, radio.FrequencyRange) {}
