// Package metrics exposes simulator activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harveysanders/picosweep/sweeper/radio"
	"github.com/harveysanders/picosweep/sweeper/scan"
)

const namespace = "picosweep"

// Metrics implements radio.Observer and records scans and LED writes.
type Metrics struct {
	hops      *prometheus.CounterVec
	ranges    prometheus.Counter
	rangeIdx  prometheus.Gauge
	channel   prometheus.Gauge
	scans     *prometheus.CounterVec
	networks  prometheus.Gauge
	strongest prometheus.Gauge
	duty      *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "hops_total",
			Help:      "Channel hops by result (sent, set_channel, write).",
		}, []string{"result"}),
		ranges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "ranges_completed_total",
			Help:      "Frequency ranges swept to completion.",
		}),
		rangeIdx: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "range_index",
			Help:      "Index of the last completed range.",
		}),
		channel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "channel_mhz",
			Help:      "Carrier frequency of the last hop in MHz.",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "total",
			Help:      "Network scans by outcome.",
		}, []string{"outcome"}),
		networks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "networks",
			Help:      "Networks seen by the last successful scan.",
		}),
		strongest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "strongest_rssi_dbm",
			Help:      "RSSI of the strongest network in the last successful scan.",
		}),
		duty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "led",
			Name:      "duty",
			Help:      "Last duty written to each LED channel (0-255).",
		}, []string{"led"}),
	}
	reg.MustRegister(m.hops, m.ranges, m.rangeIdx, m.channel, m.scans, m.networks, m.strongest, m.duty)
	return m
}

// ObserveHop implements radio.Observer.
func (m *Metrics) ObserveHop(h radio.Hop) {
	result := "sent"
	switch h.Stage {
	case radio.StageSetChannel:
		result = "set_channel"
	case radio.StageWrite:
		result = "write"
	}
	m.hops.WithLabelValues(result).Inc()
	m.channel.Set(float64(radio.FrequencyMHz(h.Channel)))
}

// ObserveRange implements radio.Observer.
func (m *Metrics) ObserveRange(index int, _ radio.FrequencyRange) {
	m.ranges.Inc()
	m.rangeIdx.Set(float64(index))
}

// ObserveScan records one scan report.
func (m *Metrics) ObserveScan(r scan.Report) {
	if !r.OK {
		m.scans.WithLabelValues("failed").Inc()
		return
	}
	m.scans.WithLabelValues("ok").Inc()
	m.networks.Set(float64(r.Count))
	if best, ok := scan.Strongest(r.Networks); ok {
		m.strongest.Set(float64(best.RSSI))
	}
}

// ObserveDuty records an LED write. Its signature matches simhw.LED.OnDuty.
func (m *Metrics) ObserveDuty(name string, duty uint32) {
	m.duty.WithLabelValues(name).Set(float64(duty))
}

// Summary is a snapshot used for the heartbeat log line.
type Summary struct {
	Sent, Failed uint64
	Ranges       uint64
	Scans        uint64
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() Summary {
	return Summary{
		Sent:   counterValue(m.hops.WithLabelValues("sent")),
		Failed: counterValue(m.hops.WithLabelValues("set_channel")) + counterValue(m.hops.WithLabelValues("write")),
		Ranges: counterValue(m.ranges),
		Scans:  counterValue(m.scans.WithLabelValues("ok")) + counterValue(m.scans.WithLabelValues("failed")),
	}
}
