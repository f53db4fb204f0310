package scan

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlaceholder(t *testing.T) {
	got, err := Placeholder{}.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []Network{
		{SSID: "Network-1", RSSI: -45},
		{SSID: "Network-2", RSSI: -67},
		{SSID: "Wokwi-GUEST", RSSI: -30},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d networks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStrongest(t *testing.T) {
	n, ok := Strongest([]Network{{"a", -70}, {"b", -30}, {"c", -50}})
	if !ok || n.SSID != "b" {
		t.Errorf("Strongest = %+v, %v", n, ok)
	}
	if _, ok := Strongest(nil); ok {
		t.Error("Strongest(nil) reported ok")
	}
}

func TestNewReport(t *testing.T) {
	at := time.Unix(100, 0)

	r := NewReport(at, []Network{{"x", -40}}, nil)
	if !r.OK || r.Count != 1 || r.Error != "" {
		t.Errorf("success report = %+v", r)
	}

	r = NewReport(at, nil, errors.New("radio busy"))
	if r.OK || r.Error != "radio busy" {
		t.Errorf("failure report = %+v", r)
	}

	r = NewReport(at, []Network{}, nil)
	if r.OK || r.Error != ErrNoNetworks.Error() {
		t.Errorf("empty report = %+v", r)
	}
}

func TestLabel(t *testing.T) {
	if got := (Network{}).Label(); got != "<hidden>" {
		t.Errorf("Label() = %q", got)
	}
	if got := (Network{SSID: "home"}).Label(); got != "home" {
		t.Errorf("Label() = %q", got)
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(ctx context.Context) ([]Network, error) { return nil, ErrNoNetworks })
	if _, err := f.Scan(context.Background()); !errors.Is(err, ErrNoNetworks) {
		t.Errorf("err = %v", err)
	}
}
