// Package lcd provides a channel-based messaging system for HD44780 LCD displays.
//
// Example usage:
//
//	lcdMessages := make(chan lcd.Message, 10)
//	handler := lcd.NewHandler(&device, lcdMessages, logger)
//	go handler.Run()
//
//	// Never blocks; drops the message if the channel is full.
//	lcd.Send(lcdMessages, "Sweep 2-22", "2.402-2.422GHz")
package lcd

import (
	"errors"
	"io"
	"log/slog"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// Message represents a two-line LCD message.
type Message struct {
	Line1 []byte
	Line2 []byte
}

// Display is the subset of hd44780i2c.Device the handler drives.
type Display interface {
	ClearDisplay()
	SetCursor(x, y uint8)
	Print(data []byte)
}

// Handler processes LCD messages from a channel.
type Handler struct {
	device   Display
	messages <-chan Message
	logger   *slog.Logger
	rows     int
	columns  int
}

// NewHandler creates a new 16x2 LCD message handler.
func NewHandler(device Display, messages <-chan Message, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &Handler{
		device:   device,
		messages: messages,
		logger:   logger,
		rows:     2,
		columns:  16,
	}
}

// Run processes messages from the channel and updates the LCD.
// Run should be called in a separate goroutine. It returns when the channel
// is closed.
func (h *Handler) Run() {
	for msg := range h.messages {
		h.display(msg)
	}
	h.logger.Debug("lcd:handler stopped")
}

// display prints msg to the LCD, truncating each line to the width.
func (h *Handler) display(msg Message) {
	h.device.ClearDisplay()
	h.device.SetCursor(0, 0)
	h.device.Print(truncate(msg.Line1, h.columns))
	h.device.SetCursor(0, 1)
	h.device.Print(truncate(msg.Line2, h.columns))
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// Send queues a message without blocking. It reports whether the message was
// queued. A nil channel drops everything, so callers can run without an LCD.
func Send(messages chan<- Message, line1, line2 string) bool {
	if messages == nil {
		return false
	}
	select {
	case messages <- Message{Line1: []byte(line1), Line2: []byte(line2)}:
		return true
	default:
		return false
	}
}

// Configure takes a preconfigured I2C bus and attempts to initialize an
// HD44780 behind a PCF8574 backpack. The common addresses (0x27, 0x3F) are
// tried in order; the first that acknowledges a write is used.
func Configure(bus drivers.I2C) (*hd44780i2c.Device, error) {
	addrs := []uint8{0x27, 0x3F}
	for _, a := range addrs {
		// Only a present backpack acknowledges the write.
		if err := bus.Tx(uint16(a), []byte{0}, nil); err != nil {
			continue
		}
		dev := hd44780i2c.New(bus, a)
		err := dev.Configure(hd44780i2c.Config{
			Width:  16,
			Height: 2,
		})
		if err != nil {
			return nil, errors.New("lcd configure:" + err.Error())
		}
		return &dev, nil
	}
	return nil, errors.New("LCD not found on addresses: 0x27, 0x3f")
}
