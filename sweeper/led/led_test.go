package led

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder is a DutySetter that remembers every write.
type recorder struct {
	mu     sync.Mutex
	writes []uint32
	fail   error
}

func (r *recorder) SetDuty(d uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.writes = append(r.writes, d)
	return nil
}

func (r *recorder) last() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		return 0
	}
	return r.writes[len(r.writes)-1]
}

func newRGB() (*RGB, *recorder, *recorder, *recorder) {
	r, g, b := &recorder{}, &recorder{}, &recorder{}
	return &RGB{
		Red:   NewChannel("red", r),
		Green: NewChannel("green", g),
		Blue:  NewChannel("blue", b),
	}, r, g, b
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "FF0000", want: Color{R: 255}},
		{in: "00ff00", want: Color{G: 255}},
		{in: "0a0B0c", want: Color{R: 10, G: 11, B: 12}},
		{in: "123456", want: Color{R: 0x12, G: 0x34, B: 0x56}},
		{in: "", wantErr: true},
		{in: "FFF", wantErr: true},
		{in: "FF00001", wantErr: true},
		{in: "GG0000", wantErr: true},
		{in: "#FF000", wantErr: true},
		{in: " FF000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidColor) {
					t.Fatalf("ParseHex(%q) error = %v, want ErrInvalidColor", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHex(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	c := Color{R: 0xAB, G: 0x01, B: 0xF0}
	if got := c.Hex(); got != "AB01F0" {
		t.Fatalf("Hex() = %q", got)
	}
	back, err := ParseHex(c.Hex())
	if err != nil || back != c {
		t.Fatalf("ParseHex(Hex()) = %+v, %v", back, err)
	}
}

func TestChannelClampsDuty(t *testing.T) {
	rec := &recorder{}
	ch := NewChannel("red", rec)
	if err := ch.SetDuty(1000); err != nil {
		t.Fatal(err)
	}
	if rec.last() != MaxDuty || ch.Duty() != MaxDuty {
		t.Errorf("duty not clamped: wrote %d, stored %d", rec.last(), ch.Duty())
	}
}

func TestChannelKeepsDutyOnFailure(t *testing.T) {
	rec := &recorder{}
	ch := NewChannel("green", rec)
	if err := ch.SetDuty(40); err != nil {
		t.Fatal(err)
	}
	rec.fail = errors.New("bus fault")
	if err := ch.SetDuty(90); err == nil {
		t.Fatal("expected error")
	}
	if ch.Duty() != 40 {
		t.Errorf("Duty() = %d after failed write, want 40", ch.Duty())
	}
}

func TestSetColor(t *testing.T) {
	rgb, r, g, b := newRGB()
	if err := rgb.SetColor(Color{R: 1, G: 2, B: 3}); err != nil {
		t.Fatal(err)
	}
	if r.last() != 1 || g.last() != 2 || b.last() != 3 {
		t.Errorf("got r=%d g=%d b=%d", r.last(), g.last(), b.last())
	}
	if rgb.Color() != (Color{R: 1, G: 2, B: 3}) {
		t.Errorf("Color() = %+v", rgb.Color())
	}
}

func TestSetColorAttemptsAllChannels(t *testing.T) {
	rgb, r, g, b := newRGB()
	g.fail = errors.New("stuck")
	if err := rgb.SetColor(Color{R: 9, G: 9, B: 9}); err == nil {
		t.Fatal("expected error from green channel")
	}
	if r.last() != 9 || b.last() != 9 {
		t.Errorf("red/blue not written: r=%d b=%d", r.last(), b.last())
	}
}

func TestConcurrentWriters(t *testing.T) {
	rgb, _, _, _ := newRGB()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint8) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = rgb.SetColor(Color{R: v, G: v, B: v})
				_ = rgb.Pair().Off()
			}
		}(uint8(i))
	}
	wg.Wait()
}

func TestPWMOutputScales(t *testing.T) {
	slice := &fakeSlice{top: 1000}
	out := PWMOutput{Slice: slice, Channel: 1}
	tests := []struct {
		duty uint32
		want uint32
	}{
		{0, 0},
		{255, 1000},
		{300, 1000},
		{51, 200},
	}
	for _, tt := range tests {
		if err := out.SetDuty(tt.duty); err != nil {
			t.Fatal(err)
		}
		if slice.values[1] != tt.want {
			t.Errorf("SetDuty(%d) set %d, want %d", tt.duty, slice.values[1], tt.want)
		}
	}
	if err := (PWMOutput{}).SetDuty(1); err == nil {
		t.Error("expected error without a slice")
	}
}

type fakeSlice struct {
	top    uint32
	values map[uint8]uint32
}

func (f *fakeSlice) Set(ch uint8, v uint32) {
	if f.values == nil {
		f.values = map[uint8]uint32{}
	}
	f.values[ch] = v
}

func (f *fakeSlice) Top() uint32 { return f.top }

// countingSleep records every requested sleep without waiting.
type countingSleep struct {
	calls  []time.Duration
	cancel int // return context.Canceled on this call number (1-based), 0 = never
}

func (s *countingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	if s.cancel > 0 && len(s.calls) == s.cancel {
		return context.Canceled
	}
	return nil
}
