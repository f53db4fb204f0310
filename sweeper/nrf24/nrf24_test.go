package nrf24

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeChip emulates the register file and TX path of an nRF24L01 behind SPI.
type fakeChip struct {
	regs    [0x20][]byte
	status  byte
	csnLow  bool
	ceHigh  bool
	pulses  int
	txFIFO  [][]byte
	flushes int

	// onTransmit decides the STATUS bits raised after a CE pulse.
	onTransmit byte
	busErr     error
	nopErr     error
	flushErr   error
}

func newFakeChip() *fakeChip {
	c := &fakeChip{onTransmit: bitTxDS, status: 0x0E}
	for i := range c.regs {
		c.regs[i] = []byte{0}
	}
	c.regs[regSetupAW] = []byte{3}
	c.regs[regConfig] = []byte{0x08}
	return c
}

func (c *fakeChip) Tx(w, r []byte) error {
	if c.busErr != nil {
		return c.busErr
	}
	if !c.csnLow {
		panic("SPI transfer with CSN high")
	}
	if len(r) > 0 {
		r[0] = c.status
	}
	cmd := w[0]
	switch {
	case cmd == cmdNop:
		return c.nopErr
	case cmd == cmdFlushTx:
		c.flushes++
		if c.flushErr != nil {
			return c.flushErr
		}
		c.txFIFO = nil
	case cmd == cmdFlushRx:
	case cmd == cmdWriteTxPayload:
		c.txFIFO = append(c.txFIFO, append([]byte(nil), w[1:]...))
	case cmd&0xE0 == cmdWriteRegister:
		reg := cmd & 0x1F
		if reg == regStatus {
			c.status &^= w[1] & statusIRQMask
			return nil
		}
		c.regs[reg] = append([]byte(nil), w[1:]...)
	case cmd&0xE0 == cmdReadRegister:
		reg := cmd & 0x1F
		if reg == regStatus {
			r[1] = c.status
			return nil
		}
		copy(r[1:], c.regs[reg])
	}
	return nil
}

func (c *fakeChip) Transfer(b byte) (byte, error) { return c.status, nil }

type pin struct {
	high func()
	low  func()
}

func (p pin) High() { p.high() }
func (p pin) Low()  { p.low() }

func newDevice(t *testing.T) (*Device, *fakeChip) {
	t.Helper()
	c := newFakeChip()
	ce := pin{
		high: func() {
			c.ceHigh = true
			c.pulses++
			if len(c.txFIFO) > 0 {
				c.status |= c.onTransmit
			}
		},
		low: func() { c.ceHigh = false },
	}
	csn := pin{high: func() { c.csnLow = false }, low: func() { c.csnLow = true }}
	d := New(c, ce, csn)
	d.Delay = func(time.Duration) {}
	if err := d.Configure(DefaultConfig()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return d, c
}

func TestConfigure(t *testing.T) {
	_, c := newDevice(t)

	checks := []struct {
		name string
		reg  byte
		want byte
	}{
		{"channel", regRFCh, 76},
		{"rf setup max power 1mbps", regRFSetup, 0x06},
		{"retries 1500us x15", regSetupRetr, 0x5F},
		{"address width", regSetupAW, 3},
		{"payload pipe 0", regRxPwP0, 32},
		{"payload pipe 5", regRxPwP0 + 5, 32},
		{"config", regConfig, bitEnCRC | bitCRCO | bitPwrUp},
	}
	for _, tt := range checks {
		if got := c.regs[tt.reg][0]; got != tt.want {
			t.Errorf("%s: reg 0x%02x = 0x%02x, want 0x%02x", tt.name, tt.reg, got, tt.want)
		}
	}
	if c.csnLow {
		t.Error("CSN left low")
	}
}

func TestConfigureRejectsBadConfig(t *testing.T) {
	c := newFakeChip()
	noop := pin{high: func() {}, low: func() {}}
	d := New(c, noop, pin{high: func() { c.csnLow = false }, low: func() { c.csnLow = true }})
	d.Delay = func(time.Duration) {}

	cfg := DefaultConfig()
	cfg.Channel = 126
	if err := d.Configure(cfg); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("channel 126: %v", err)
	}
	cfg = DefaultConfig()
	cfg.PayloadSize = 33
	if err := d.Configure(cfg); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("payload 33: %v", err)
	}
}

func TestIsConnected(t *testing.T) {
	d, c := newDevice(t)
	ok, err := d.IsConnected()
	if err != nil || !ok {
		t.Fatalf("IsConnected = %v, %v", ok, err)
	}

	c.regs[regSetupAW] = []byte{0}
	if ok, _ := d.IsConnected(); ok {
		t.Error("floating bus (0x00) reported connected")
	}
	c.regs[regSetupAW] = []byte{0xFF}
	if ok, _ := d.IsConnected(); ok {
		t.Error("floating bus (0xFF) reported connected")
	}

	c.busErr = errors.New("spi")
	if _, err := d.IsConnected(); err == nil {
		t.Error("bus error not reported")
	}
}

func TestSetChannel(t *testing.T) {
	d, c := newDevice(t)
	if err := d.SetChannel(42); err != nil {
		t.Fatal(err)
	}
	if c.regs[regRFCh][0] != 42 {
		t.Errorf("RF_CH = %d", c.regs[regRFCh][0])
	}
	if ch, _ := d.Channel(); ch != 42 {
		t.Errorf("Channel() = %d", ch)
	}
	if err := d.SetChannel(126); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("SetChannel(126) = %v", err)
	}
}

func TestOpenWritingPipe(t *testing.T) {
	d, c := newDevice(t)
	if err := d.OpenWritingPipe([]byte("Node1")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c.regs[regTxAddr], []byte("Node1")) || !bytes.Equal(c.regs[regRxAddrP0], []byte("Node1")) {
		t.Errorf("TX_ADDR=%q RX_ADDR_P0=%q", c.regs[regTxAddr], c.regs[regRxAddrP0])
	}

	if err := d.OpenWritingPipe([]byte("ab")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c.regs[regTxAddr], []byte{'a', 'b', 0, 0, 0}) {
		t.Errorf("short address not padded: %v", c.regs[regTxAddr])
	}

	if err := d.OpenWritingPipe([]byte("toolong")); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("long address: %v", err)
	}
}

func TestStopListening(t *testing.T) {
	d, c := newDevice(t)
	c.regs[regConfig] = []byte{bitEnCRC | bitPwrUp | bitPrimRx}
	if err := d.StopListening(); err != nil {
		t.Fatal(err)
	}
	if c.regs[regConfig][0]&bitPrimRx != 0 {
		t.Error("PRIM_RX still set")
	}
	if c.regs[regEnRxAddr][0]&1 == 0 {
		t.Error("pipe 0 not enabled")
	}
}

func TestWrite(t *testing.T) {
	d, c := newDevice(t)
	if err := d.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(c.txFIFO) != 1 {
		t.Fatalf("FIFO has %d payloads", len(c.txFIFO))
	}
	want := make([]byte, 32)
	copy(want, []byte{1, 2, 3})
	if !bytes.Equal(c.txFIFO[0], want) {
		t.Errorf("payload = % x", c.txFIFO[0])
	}
	if c.ceHigh {
		t.Error("CE left high")
	}
	if c.status&statusIRQMask != 0 {
		t.Errorf("IRQ bits not cleared: 0x%02x", c.status)
	}
}

func TestWriteMaxRetries(t *testing.T) {
	d, c := newDevice(t)
	c.onTransmit = bitMaxRT
	flushes := c.flushes
	if err := d.Write(make([]byte, 32)); !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("Write = %v, want ErrMaxRetries", err)
	}
	if c.flushes != flushes+1 || len(c.txFIFO) != 0 {
		t.Errorf("TX FIFO not flushed")
	}
}

func TestWriteTimeout(t *testing.T) {
	d, c := newDevice(t)
	c.onTransmit = 0
	if err := d.Write([]byte{9}); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Write = %v, want ErrTimeout", err)
	}
}

func TestWriteStatusFailureFlushes(t *testing.T) {
	d, c := newDevice(t)
	c.onTransmit = 0
	spiErr := errors.New("spi: rx overrun")
	c.nopErr = spiErr
	flushes := c.flushes
	if err := d.Write([]byte{1}); !errors.Is(err, spiErr) {
		t.Fatalf("Write = %v, want %v", err, spiErr)
	}
	if c.flushes != flushes+1 || len(c.txFIFO) != 0 {
		t.Errorf("TX FIFO not flushed")
	}
	if c.ceHigh {
		t.Error("CE left high")
	}
}

func TestWriteJoinsFlushError(t *testing.T) {
	tests := []struct {
		name       string
		onTransmit byte
		want       error
	}{
		{"max retries", bitMaxRT, ErrMaxRetries},
		{"timeout", 0, ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, c := newDevice(t)
			c.onTransmit = tt.onTransmit
			flushErr := errors.New("spi: bus busy")
			c.flushErr = flushErr
			err := d.Write([]byte{1})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Write = %v, want %v", err, tt.want)
			}
			if err == nil || !bytes.Contains([]byte(err.Error()), []byte("flush tx:spi: bus busy")) {
				t.Errorf("flush error missing from %v", err)
			}
		})
	}
}

func TestWriteTooLarge(t *testing.T) {
	d, _ := newDevice(t)
	if err := d.Write(make([]byte, 33)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Write = %v", err)
	}
}

func TestPowerDown(t *testing.T) {
	d, c := newDevice(t)
	if err := d.PowerDown(); err != nil {
		t.Fatal(err)
	}
	if c.regs[regConfig][0]&bitPwrUp != 0 {
		t.Error("PWR_UP still set")
	}
}

func TestRetrValue(t *testing.T) {
	tests := []struct {
		delay time.Duration
		count uint8
		want  byte
	}{
		{250 * time.Microsecond, 0, 0x00},
		{1500 * time.Microsecond, 15, 0x5F},
		{4 * time.Millisecond, 3, 0xF3},
		{10 * time.Millisecond, 40, 0xFF},
		{0, 5, 0x05},
	}
	for _, tt := range tests {
		if got := retrValue(tt.delay, tt.count); got != tt.want {
			t.Errorf("retrValue(%v, %d) = 0x%02x, want 0x%02x", tt.delay, tt.count, got, tt.want)
		}
	}
}
