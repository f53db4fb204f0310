// Package simconfig loads the host simulator configuration.
package simconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harveysanders/picosweep/sweeper/config"
)

// Config is the firmware configuration plus simulator settings.
type Config struct {
	config.Config `yaml:",inline"`

	Sim     Sim     `yaml:"sim"`
	Logging Logging `yaml:"logging"`
}

// Sim holds the simulated hardware and server settings.
type Sim struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// MetricsPath is where Prometheus metrics are served.
	MetricsPath string `yaml:"metrics_path"`

	// SetChannelFailRate and WriteFailRate are probabilities in [0,1].
	SetChannelFailRate float64 `yaml:"set_channel_fail_rate"`
	WriteFailRate      float64 `yaml:"write_fail_rate"`

	// Disconnected makes the connectivity check fail.
	Disconnected bool `yaml:"disconnected"`

	// ScanFailRate is the probability a scan fails.
	ScanFailRate float64 `yaml:"scan_fail_rate"`

	// Summary is the interval between heartbeat summaries.
	Summary time.Duration `yaml:"summary"`
}

// Logging holds log settings.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`

	// File, when set, receives logs through a rotating writer.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns config.Default with simulator defaults.
func Default() Config {
	return Config{
		Config: config.Default(),
		Sim: Sim{
			Listen:      "127.0.0.1:8080",
			MetricsPath: "/metrics",
			Summary:     10 * time.Second,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg from PICOSWEEP_* variables looked up with getenv.
// Unparseable numbers are reported and leave the field unchanged.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	rate := func(key string, dst *float64) {
		v := getenv(key)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}

	str("PICOSWEEP_SSID", &cfg.WiFi.SSID)
	str("PICOSWEEP_PASS", &cfg.WiFi.Password)
	str("PICOSWEEP_HOSTNAME", &cfg.WiFi.Hostname)
	str("PICOSWEEP_LISTEN", &cfg.Sim.Listen)
	str("PICOSWEEP_MQTT_BROKER", &cfg.MQTT.Broker)
	str("PICOSWEEP_MQTT_USER", &cfg.MQTT.Username)
	str("PICOSWEEP_MQTT_PASS", &cfg.MQTT.Password)
	str("PICOSWEEP_LOG_LEVEL", &cfg.Logging.Level)
	str("PICOSWEEP_LOG_FILE", &cfg.Logging.File)
	rate("PICOSWEEP_SET_CHANNEL_FAIL_RATE", &cfg.Sim.SetChannelFailRate)
	rate("PICOSWEEP_WRITE_FAIL_RATE", &cfg.Sim.WriteFailRate)
	rate("PICOSWEEP_SCAN_FAIL_RATE", &cfg.Sim.ScanFailRate)
	if v := getenv("PICOSWEEP_DISCONNECTED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PICOSWEEP_DISCONNECTED: %w", err))
		} else {
			cfg.Sim.Disconnected = b
		}
	}
	return errors.Join(errs...)
}

// Validate checks the firmware and simulator settings.
func (c *Config) Validate() error {
	errs := []error{c.Config.Validate()}
	for name, r := range map[string]float64{
		"set_channel_fail_rate": c.Sim.SetChannelFailRate,
		"write_fail_rate":       c.Sim.WriteFailRate,
		"scan_fail_rate":        c.Sim.ScanFailRate,
	} {
		if r < 0 || r > 1 {
			errs = append(errs, fmt.Errorf("sim.%s must be within [0,1], got %g", name, r))
		}
	}
	if c.Sim.Listen == "" {
		errs = append(errs, errors.New("sim.listen is empty"))
	}
	if c.Sim.MetricsPath == "" || c.Sim.MetricsPath[0] != '/' {
		errs = append(errs, fmt.Errorf("sim.metrics_path %q must start with /", c.Sim.MetricsPath))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
