// Package config holds the firmware settings.
//
// There is no runtime configuration: credentials and addresses are baked in
// at link time, e.g.
//
//	tinygo flash -target=pico-w -ldflags="-X github.com/harveysanders/picosweep/sweeper/config.ssid=home -X github.com/harveysanders/picosweep/sweeper/config.pass=secret" ./sweeper
//
// and everything else uses the defaults below.
package config

import (
	"errors"
	"time"

	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/radio"
)

// Set via -ldflags -X.
var (
	ssid       string
	pass       string
	hostname   string
	mqttBroker string
	mqttUser   string
	mqttPass   string
)

// WiFi holds the station settings.
type WiFi struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	Hostname string `yaml:"hostname"`
}

// Sweep holds the radio sweep settings.
type Sweep struct {
	Ranges      []radio.FrequencyRange `yaml:"ranges"`
	HopDwell    time.Duration          `yaml:"hop_dwell"`
	RangePause  time.Duration          `yaml:"range_pause"`
	PayloadSize int                    `yaml:"payload_size"`
	PipeAddress string                 `yaml:"pipe_address"`
}

// Indicator holds the scan indicator timings.
type Indicator struct {
	FlashDuration time.Duration `yaml:"flash_duration"`
	FlashInterval time.Duration `yaml:"flash_interval"`
	WaitDuration  time.Duration `yaml:"wait_duration"`
	WaitInterval  time.Duration `yaml:"wait_interval"`
}

// SweeperOptions turns s into radio.Sweeper options.
func (s Sweep) SweeperOptions() []func(*radio.Sweeper) {
	return []func(*radio.Sweeper){
		radio.WithRanges(s.Ranges),
		radio.WithHopDwell(s.HopDwell),
		radio.WithRangePause(s.RangePause),
		radio.WithPayloadSize(s.PayloadSize),
		radio.WithPipeAddress([]byte(s.PipeAddress)),
	}
}

// Patterns returns the success, failure and waiting flash patterns.
func (i Indicator) Patterns() (success, failure, waiting led.Pattern) {
	success = led.Pattern{Hue: led.HueGreen, Duration: i.FlashDuration, Interval: i.FlashInterval}
	failure = led.Pattern{Hue: led.HueRed, Duration: i.FlashDuration, Interval: i.FlashInterval}
	waiting = led.Pattern{Hue: led.HueRed, Duration: i.WaitDuration, Interval: i.WaitInterval}
	return success, failure, waiting
}

// HTTP holds the color server settings.
type HTTP struct {
	Port uint16 `yaml:"port"`
}

// MQTT holds the optional status publisher settings. An empty Broker
// disables publishing.
type MQTT struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config is the complete firmware configuration.
type Config struct {
	WiFi      WiFi          `yaml:"wifi"`
	Sweep     Sweep         `yaml:"sweep"`
	Indicator Indicator     `yaml:"indicator"`
	HTTP      HTTP          `yaml:"http"`
	MQTT      MQTT          `yaml:"mqtt"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Default returns the built-in configuration without link-time values.
func Default() Config {
	ranges := make([]radio.FrequencyRange, len(radio.DefaultRanges))
	copy(ranges, radio.DefaultRanges)
	return Config{
		WiFi: WiFi{
			SSID:     "Wokwi-GUEST",
			Hostname: "picosweep",
		},
		Sweep: Sweep{
			Ranges:      ranges,
			HopDwell:    50 * time.Millisecond,
			RangePause:  500 * time.Millisecond,
			PayloadSize: 32,
			PipeAddress: "Node1",
		},
		Indicator: Indicator{
			FlashDuration: 500 * time.Millisecond,
			FlashInterval: 100 * time.Millisecond,
			WaitDuration:  10 * time.Second,
			WaitInterval:  time.Second,
		},
		HTTP: HTTP{Port: 80},
		MQTT: MQTT{
			ClientID: "picosweep",
			Topic:    "picosweep/status",
			Timeout:  5 * time.Second,
		},
		Heartbeat: time.Second,
	}
}

// Load returns Default with link-time values applied.
func Load() Config {
	cfg := Default()
	if ssid != "" {
		cfg.WiFi.SSID = ssid
		cfg.WiFi.Password = pass
	}
	if hostname != "" {
		cfg.WiFi.Hostname = hostname
	}
	cfg.MQTT.Broker = mqttBroker
	cfg.MQTT.Username = mqttUser
	cfg.MQTT.Password = mqttPass
	return cfg
}

// Validate checks the configuration for values the workers cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.WiFi.Hostname == "" {
		errs = append(errs, errors.New("empty hostname"))
	}
	if err := radio.ValidateRanges(c.Sweep.Ranges); err != nil {
		errs = append(errs, err)
	}
	if c.Sweep.PayloadSize < 1 || c.Sweep.PayloadSize > 32 {
		errs = append(errs, errors.New("payload size must be 1-32"))
	}
	if n := len(c.Sweep.PipeAddress); n < 1 || n > 5 {
		errs = append(errs, errors.New("pipe address must be 1-5 bytes"))
	}
	if c.Sweep.HopDwell < 0 || c.Sweep.RangePause < 0 {
		errs = append(errs, errors.New("negative sweep delay"))
	}
	if c.Indicator.FlashInterval <= 0 || c.Indicator.WaitInterval <= 0 {
		errs = append(errs, errors.New("indicator intervals must be positive"))
	}
	if c.MQTT.Password != "" && c.MQTT.Username == "" {
		errs = append(errs, errors.New("mqtt password requires a username"))
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt topic required when a broker is set"))
	}
	return errors.Join(errs...)
}
