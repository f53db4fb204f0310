// Command sweepsim runs the radio sweeper, the scan indicator and the color
// server on a host against simulated hardware.
//
// Usage:
//
//	sweepsim [flags]
//
// Flags:
//
//	-config string   Path to a YAML config file (default: built-in defaults)
//	-listen string   HTTP listen address (overrides sim.listen)
//	-seed uint       Seed for simulated faults (default: time based)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/harveysanders/picosweep/sweeper/indicator"
	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/mqtt"
	"github.com/harveysanders/picosweep/sweeper/radio"
	"github.com/harveysanders/picosweep/sweeper/scan"
	"github.com/harveysanders/picosweep/sweeper/status"
	"github.com/harveysanders/picosweep/sweepsim/metrics"
	"github.com/harveysanders/picosweep/sweepsim/simconfig"
	"github.com/harveysanders/picosweep/sweepsim/simhw"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sweepsim:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a YAML config file")
	listen := flag.String("listen", "", "HTTP listen address (overrides sim.listen)")
	seed := flag.Uint64("seed", 0, "Seed for simulated faults (default: time based)")
	flag.Parse()

	cfg, err := simconfig.Load(*configPath)
	if err != nil {
		return err
	}
	if err := simconfig.ApplyEnv(cfg, os.Getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if *listen != "" {
		cfg.Sim.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledLogger := logger.With(slog.String("component", "led"))
	newLED := func(name string) *led.Channel {
		return led.NewChannel(name, &simhw.LED{Name: name, Logger: ledLogger, OnDuty: m.ObserveDuty})
	}
	leds := &led.RGB{Red: newLED("red"), Green: newLED("green"), Blue: newLED("blue")}

	var events chan []byte
	if cfg.MQTT.Broker != "" {
		events = make(chan []byte, 16)
	}
	reporter := &status.Reporter{Publish: events, Logger: logger}

	simRadio := simhw.NewRadio(simhw.Faults{
		SetChannelFailRate: cfg.Sim.SetChannelFailRate,
		WriteFailRate:      cfg.Sim.WriteFailRate,
		Disconnected:       cfg.Sim.Disconnected,
	}, *seed, logger.With(slog.String("component", "simhw")))
	sweeper := radio.NewSweeper(simRadio, append(cfg.Sweep.SweeperOptions(),
		radio.WithLogger(logger.With(slog.String("worker", "radio"))),
		radio.WithObserver(radio.Observers{m, reporter}),
	)...)

	success, failure, waiting := cfg.Indicator.Patterns()
	reports := make(chan scan.Report, 4)
	worker := &indicator.Worker{
		Scanner: simhw.NewScanner(cfg.Sim.ScanFailRate, *seed+1),
		LEDs:    leds.Pair(),
		Logger:  logger.With(slog.String("worker", "indicator")),
		Success: success,
		Failure: failure,
		Waiting: waiting,
		Reports: reports,
	}

	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("radio:stopped", slog.String("err", err.Error()))
		}
	}()
	go worker.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rep := <-reports:
				m.ObserveScan(rep)
				reporter.ObserveScan(rep)
			}
		}
	}()
	if events != nil {
		go publishStatus(ctx, cfg, events, logger.With(slog.String("component", "mqtt")))
	}

	server := &http.Server{
		Addr:         cfg.Sim.Listen,
		Handler:      newMux(leds, sweeper, reg, cfg.Sim.MetricsPath, logger.With(slog.String("component", "http"))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		logger.Info("sweepsim:shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http:shutdown", slog.String("err", err.Error()))
		}
	}()
	go summarize(ctx, logger, m, sweeper, leds, cfg.Sim.Summary)

	logger.Info("sweepsim:listening",
		slog.String("addr", cfg.Sim.Listen),
		slog.String("metrics", cfg.Sim.MetricsPath),
		slog.Uint64("seed", *seed),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	<-ctx.Done()
	logger.Info("sweepsim:stopped")
	return nil
}

func newLogger(cfg simconfig.Logging) (*slog.Logger, func(), error) {
	var level slog.LevelVar
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = io.MultiWriter(os.Stderr, rotating)
		closeFn = func() { rotating.Close() }
	}

	opts := &slog.HandlerOptions{Level: &level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
}

// summarize logs a heartbeat line every period until ctx is done.
func summarize(ctx context.Context, logger *slog.Logger, m *metrics.Metrics, sweeper *radio.Sweeper, leds *led.RGB, period time.Duration) {
	if period <= 0 {
		return
	}
	start := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("heartbeat", heartbeatAttrs(m.Snapshot(), sweeper.State(), leds.Color(), start)...)
		}
	}
}

func heartbeatAttrs(s metrics.Summary, state radio.State, color led.Color, start time.Time) []any {
	return []any{
		slog.String("radio", state.String()),
		slog.String("color", color.Hex()),
		slog.String("sent", humanize.Comma(int64(s.Sent))),
		slog.String("failed", humanize.Comma(int64(s.Failed))),
		slog.String("ranges", humanize.Comma(int64(s.Ranges))),
		slog.String("scans", humanize.Comma(int64(s.Scans))),
		slog.String("started", humanize.Time(start)),
	}
}

// runSession connects over conn and publishes until events closes or ctx is
// done. The session owns conn and closes it.
func runSession(ctx context.Context, session *mqtt.Session, conn io.ReadWriteCloser, events <-chan []byte) error {
	defer session.Close()
	if err := session.Connect(conn); err != nil {
		return err
	}
	return session.PublishLoop(ctx, events)
}

// publishStatus keeps an MQTT session open to the broker and forwards status
// events, reconnecting with a fixed backoff.
func publishStatus(ctx context.Context, cfg *simconfig.Config, events <-chan []byte, logger *slog.Logger) {
	const backoff = 2 * time.Second
	session := &mqtt.Session{
		ID:       cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Timeout:  cfg.MQTT.Timeout,
		Logger:   logger,
	}
	var dialer net.Dialer
	for ctx.Err() == nil {
		conn, err := dialer.DialContext(ctx, "tcp", cfg.MQTT.Broker)
		if err == nil {
			err = runSession(ctx, session, conn, events)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mqtt:session ended", slog.String("err", err.Error()))
		}
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}
}
