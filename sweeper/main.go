//go:build tinygo

// Command sweeper is the Pico W firmware: it sweeps the 2.4 GHz band with an
// nRF24L01, flashes a red/green LED after each WiFi scan and serves
// POST /color to set the RGB LED.
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/picosweep/sweeper/colorhttp"
	"github.com/harveysanders/picosweep/sweeper/config"
	"github.com/harveysanders/picosweep/sweeper/cyw43439"
	"github.com/harveysanders/picosweep/sweeper/indicator"
	"github.com/harveysanders/picosweep/sweeper/lcd"
	"github.com/harveysanders/picosweep/sweeper/led"
	"github.com/harveysanders/picosweep/sweeper/mqtt"
	"github.com/harveysanders/picosweep/sweeper/nrf24"
	"github.com/harveysanders/picosweep/sweeper/radio"
	"github.com/harveysanders/picosweep/sweeper/scan"
	"github.com/harveysanders/picosweep/sweeper/status"
)

// tcpBufSize is MTU minus the ethernet, IP and TCP headers.
const tcpBufSize = 2030

func main() {
	// Give the serial monitor time to attach.
	time.Sleep(2 * time.Second)

	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("picosweep:starting")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		printErrForever(logger, "invalid config", slog.String("reason", err.Error()))
	}

	leds, err := setupLEDs()
	if err != nil {
		printErrForever(logger, "configure LEDs", slog.String("reason", err.Error()))
	}

	lcdMessages := make(chan lcd.Message, 10)
	startLCD(logger, lcdMessages)
	lcd.Send(lcdMessages, "picosweep", "starting...")

	stack, err := cyw43439.NewStack(cfg.WiFi.SSID, cfg.WiFi.Password, cyw43439.StackConfig{
		Hostname:    cfg.WiFi.Hostname,
		MaxTCPPorts: 2,
		Logger:      logger,
	})
	if err != nil {
		printErrForever(logger, "wifi setup", slog.String("reason", err.Error()))
	}
	go stack.PollForever()

	if _, err := stack.SetupWithDHCP(cyw43439.DHCPConfig{}); err != nil {
		printErrForever(logger, "dhcp", slog.String("reason", err.Error()))
	}
	lcd.Send(lcdMessages, "WiFi connected", stack.Addr().String())

	var events chan []byte
	if cfg.MQTT.Broker != "" {
		events = make(chan []byte, 8)
	}
	reporter := &status.Reporter{
		LCD:     lcdMessages,
		Publish: events,
		Logger:  logger,
	}

	ctx := context.Background()

	spi, err := setupSPI()
	if err != nil {
		printErrForever(logger, "spi", slog.String("reason", err.Error()))
	}
	// The nRF24 needs 100ms after power on before it accepts commands.
	time.Sleep(100 * time.Millisecond)
	radioDev := nrf24.New(spi, pinCE, pinCSN)
	nrfCfg := nrf24.DefaultConfig()
	nrfCfg.PayloadSize = uint8(cfg.Sweep.PayloadSize)
	if err := radioDev.Configure(nrfCfg); err != nil {
		// The sweeper logs the connectivity failure and stays in Failed.
		logger.Error("nrf24:configure-failed", slog.String("err", err.Error()))
	}

	sweeper := radio.NewSweeper(radioDev, append(cfg.Sweep.SweeperOptions(),
		radio.WithLogger(logger.With(slog.String("worker", "radio"))),
		radio.WithObserver(reporter),
	)...)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("radio:stopped", slog.String("err", err.Error()))
		}
	}()

	success, failure, waiting := cfg.Indicator.Patterns()
	reports := make(chan scan.Report, 2)
	worker := &indicator.Worker{
		Scanner: scan.Placeholder{},
		LEDs:    leds.Pair(),
		Logger:  logger.With(slog.String("worker", "indicator")),
		Success: success,
		Failure: failure,
		Waiting: waiting,
		Reports: reports,
	}
	go worker.Run(ctx)
	go reporter.Scans(ctx, reports)

	server := &colorhttp.Server{LEDs: leds, Logger: logger}
	go func() {
		if err := server.ListenAndServe(stack, cfg.HTTP.Port, tcpBufSize); err != nil {
			logger.Error("http:stopped", slog.String("err", err.Error()))
		}
	}()

	if events != nil {
		session := &mqtt.Session{
			ID:       cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Timeout:  cfg.MQTT.Timeout,
			Logger:   logger,
		}
		go func() {
			err := session.ConnectAndPublish(stack, cfg.MQTT.Broker, tcpBufSize, events, lcdMessages)
			if err != nil {
				logger.Error("mqtt:stopped", slog.String("err", err.Error()))
			}
		}()
	}

	heartbeat(logger, stack, sweeper, leds, cfg.Heartbeat)
}

func startLCD(logger *slog.Logger, messages chan lcd.Message) {
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: pinSDA,
		SCL: pinSCL,
	})
	if err != nil {
		logger.Warn("lcd:i2c-failed", slog.String("err", err.Error()))
		return
	}
	dev, err := lcd.Configure(machine.I2C0)
	if err != nil {
		// Messages are dropped once the buffer fills.
		logger.Warn("lcd:not-found", slog.String("err", err.Error()))
		return
	}
	go lcd.NewHandler(dev, messages, logger).Run()
}

// heartbeat blinks the on-board LED and logs the sweeper state forever.
func heartbeat(logger *slog.Logger, stack *cyw43439.Stack, sweeper *radio.Sweeper, leds *led.RGB, period time.Duration) {
	on := false
	for {
		on = !on
		if err := stack.SetLED(on); err != nil {
			logger.Warn("heartbeat:led", slog.String("err", err.Error()))
		}
		logger.Debug("heartbeat",
			slog.String("radio", sweeper.State().String()),
			slog.Int("cursor", sweeper.Cursor()),
			slog.String("color", leds.Color().Hex()),
		)
		time.Sleep(period)
	}
}

// printErrForever logs msg once a second so a late serial monitor still
// sees it. It never returns.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
