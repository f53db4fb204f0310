// Package scan provides the wireless network scan primitive consumed by the
// indicator worker.
//
// The CYW43439 driver does not expose a station scan, so the firmware uses
// Placeholder, which reports a fixed list of networks. This is a known
// limitation: the LED feedback reflects the placeholder, not the air.
package scan

import (
	"context"
	"errors"
	"time"
)

var ErrNoNetworks = errors.New("no networks found")

// Network is one scan entry.
type Network struct {
	SSID string `json:"ssid"`
	RSSI int8   `json:"rssi"` // dBm
}

// Scanner returns the visible networks in arrival order.
type Scanner interface {
	Scan(ctx context.Context) ([]Network, error)
}

// Func adapts a function to Scanner.
type Func func(ctx context.Context) ([]Network, error)

// Scan implements Scanner.
func (f Func) Scan(ctx context.Context) ([]Network, error) { return f(ctx) }

// Placeholder returns fixed data in place of a live scan.
type Placeholder struct{}

// Scan implements Scanner.
func (Placeholder) Scan(ctx context.Context) ([]Network, error) {
	return []Network{
		{SSID: "Network-1", RSSI: -45},
		{SSID: "Network-2", RSSI: -67},
		{SSID: "Wokwi-GUEST", RSSI: -30},
	}, nil
}

// Label returns the SSID, or "<hidden>" for an empty one.
func (n Network) Label() string {
	if n.SSID == "" {
		return "<hidden>"
	}
	return n.SSID
}

// Report summarises one scan for status outputs (LCD, MQTT).
type Report struct {
	Time     time.Time `json:"time"`
	OK       bool      `json:"ok"`
	Count    int       `json:"count"`
	Networks []Network `json:"networks,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// NewReport builds a Report from a scan result.
func NewReport(at time.Time, networks []Network, err error) Report {
	r := Report{Time: at, Count: len(networks), Networks: networks}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.OK = len(networks) > 0
	if !r.OK {
		r.Error = ErrNoNetworks.Error()
	}
	return r
}

// Strongest returns the entry with the highest RSSI. ok is false for an
// empty list.
func Strongest(networks []Network) (n Network, ok bool) {
	for i, nw := range networks {
		if i == 0 || nw.RSSI > n.RSSI {
			n = nw
		}
	}
	return n, len(networks) > 0
}
