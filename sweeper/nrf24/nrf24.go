// Package nrf24 is a transmit-only driver for the nRF24L01(+) 2.4 GHz
// transceiver on a TinyGo SPI bus.
//
// It covers what a noise sweep needs: tune, transmit a fixed-size payload,
// check the chip and set up the writing pipe. Receive mode is not
// implemented.
package nrf24

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// MaxChannel is the highest RF channel (2.525 GHz).
const MaxChannel = 125

// MaxPayloadSize is the largest static payload.
const MaxPayloadSize = 32

var (
	ErrInvalidChannel  = errors.New("nrf24: channel out of range 0-125")
	ErrInvalidPayload  = errors.New("nrf24: payload size out of range 1-32")
	ErrPayloadTooLarge = errors.New("nrf24: payload larger than configured size")
	ErrInvalidAddress  = errors.New("nrf24: address must be 1-5 bytes")
	ErrMaxRetries      = errors.New("nrf24: max retransmits reached")
	ErrTimeout         = errors.New("nrf24: transmit timed out")
)

// Pin is a digital output. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// PALevel is the transmit power amplifier level.
type PALevel uint8

const (
	PAMin  PALevel = iota // -18 dBm
	PALow                 // -12 dBm
	PAHigh                // -6 dBm
	PAMax                 // 0 dBm
)

// DataRate is the air data rate.
type DataRate uint8

const (
	DataRate1Mbps DataRate = iota
	DataRate2Mbps
	DataRate250Kbps
)

// Config holds the chip settings applied by Configure.
type Config struct {
	Channel     uint8
	PALevel     PALevel
	DataRate    DataRate
	PayloadSize uint8
	// RetryDelay is the auto retransmit delay, 250µs to 4000µs in 250µs steps.
	RetryDelay time.Duration
	// RetryCount is the number of auto retransmits, 0-15.
	RetryCount uint8
}

// DefaultConfig returns channel 76, max power, 1 Mbps, 32 byte payloads and
// 15 retransmits 1500µs apart.
func DefaultConfig() Config {
	return Config{
		Channel:     76,
		PALevel:     PAMax,
		DataRate:    DataRate1Mbps,
		PayloadSize: MaxPayloadSize,
		RetryDelay:  1500 * time.Microsecond,
		RetryCount:  15,
	}
}

const (
	addrWidth  = 5
	pollPeriod = 100 * time.Microsecond
	maxPolls   = 400
)

// Device is an nRF24L01 on an SPI bus with dedicated CE and CSN pins.
type Device struct {
	bus drivers.SPI
	ce  Pin
	csn Pin

	cfg Config
	tx  [1 + MaxPayloadSize]byte
	rx  [1 + MaxPayloadSize]byte

	// Delay is used for chip settling and status polling. Defaults to
	// time.Sleep.
	Delay func(time.Duration)
}

// New returns a Device. Call Configure before use.
func New(bus drivers.SPI, ce, csn Pin) *Device {
	return &Device{
		bus:   bus,
		ce:    ce,
		csn:   csn,
		cfg:   DefaultConfig(),
		Delay: time.Sleep,
	}
}

// Configure resets the chip into powered-up standby with cfg applied.
func (d *Device) Configure(cfg Config) error {
	if cfg.Channel > MaxChannel {
		return ErrInvalidChannel
	}
	if cfg.PayloadSize == 0 || cfg.PayloadSize > MaxPayloadSize {
		return ErrInvalidPayload
	}
	d.cfg = cfg

	d.ce.Low()
	d.csn.High()
	d.Delay(5 * time.Millisecond)

	steps := [...]struct {
		reg byte
		val byte
	}{
		{regSetupRetr, retrValue(cfg.RetryDelay, cfg.RetryCount)},
		{regRFSetup, rfSetupValue(cfg.DataRate, cfg.PALevel)},
		{regFeature, 0},
		{regDynPD, 0},
		{regSetupAW, addrWidth - 2},
		{regRFCh, cfg.Channel},
		{regStatus, statusIRQMask},
	}
	for _, s := range steps {
		if err := d.writeRegister(s.reg, s.val); err != nil {
			return errors.New("nrf24 configure:" + err.Error())
		}
	}
	for pipe := byte(0); pipe < 6; pipe++ {
		if err := d.writeRegister(regRxPwP0+pipe, cfg.PayloadSize); err != nil {
			return errors.New("nrf24 configure:" + err.Error())
		}
	}
	if err := d.command(cmdFlushRx); err != nil {
		return err
	}
	if err := d.flushTx(); err != nil {
		return err
	}
	if err := d.writeRegister(regConfig, bitEnCRC|bitCRCO|bitPwrUp); err != nil {
		return errors.New("nrf24 power up:" + err.Error())
	}
	d.Delay(5 * time.Millisecond)
	return nil
}

// IsConnected reports whether the chip answers with a sane address width.
func (d *Device) IsConnected() (bool, error) {
	aw, err := d.readRegister(regSetupAW)
	if err != nil {
		return false, err
	}
	return aw >= 1 && aw <= 3, nil
}

// SetChannel tunes to 2400+ch MHz.
func (d *Device) SetChannel(ch uint8) error {
	if ch > MaxChannel {
		return ErrInvalidChannel
	}
	return d.writeRegister(regRFCh, ch)
}

// Channel reads back the RF channel register.
func (d *Device) Channel() (uint8, error) {
	return d.readRegister(regRFCh)
}

// OpenWritingPipe sets the TX address, and RX pipe 0 to the same address so
// auto-acks are received. Addresses shorter than 5 bytes are zero padded.
func (d *Device) OpenWritingPipe(addr []byte) error {
	if len(addr) == 0 || len(addr) > addrWidth {
		return ErrInvalidAddress
	}
	var a [addrWidth]byte
	copy(a[:], addr)
	if err := d.writeRegisterN(regRxAddrP0, a[:]); err != nil {
		return err
	}
	if err := d.writeRegisterN(regTxAddr, a[:]); err != nil {
		return err
	}
	return d.writeRegister(regRxPwP0, d.cfg.PayloadSize)
}

// StopListening puts the chip in primary transmitter mode.
func (d *Device) StopListening() error {
	d.ce.Low()
	d.Delay(130 * time.Microsecond)
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	if err := d.writeRegister(regConfig, cfg&^bitPrimRx); err != nil {
		return err
	}
	en, err := d.readRegister(regEnRxAddr)
	if err != nil {
		return err
	}
	return d.writeRegister(regEnRxAddr, en|1)
}

// Write transmits payload, zero padded to the configured payload size, and
// blocks until the chip reports success, gives up retransmitting, or the
// poll budget runs out. On any failure after the payload upload starts the
// TX FIFO is flushed and a flush error is joined to the result.
func (d *Device) Write(payload []byte) error {
	size := int(d.cfg.PayloadSize)
	if len(payload) > size {
		return ErrPayloadTooLarge
	}

	d.ce.Low()
	if err := d.writeRegister(regStatus, statusIRQMask); err != nil {
		return err
	}

	d.tx[0] = cmdWriteTxPayload
	n := copy(d.tx[1:1+size], payload)
	for i := 1 + n; i < 1+size; i++ {
		d.tx[i] = 0
	}
	if err := d.transfer(d.tx[:1+size], d.rx[:1+size]); err != nil {
		return errors.Join(err, d.flushTx())
	}

	d.ce.High()
	d.Delay(15 * time.Microsecond)

	var status byte
	var err error
	for i := 0; i < maxPolls; i++ {
		status, err = d.Status()
		if err != nil {
			break
		}
		if status&(bitTxDS|bitMaxRT) != 0 {
			break
		}
		d.Delay(pollPeriod)
	}
	d.ce.Low()
	if err == nil {
		err = d.writeRegister(regStatus, statusIRQMask)
	}
	switch {
	case err != nil:
	case status&bitTxDS != 0:
		return nil
	case status&bitMaxRT != 0:
		err = ErrMaxRetries
	default:
		err = ErrTimeout
	}
	return errors.Join(err, d.flushTx())
}

// PowerDown clears PWR_UP.
func (d *Device) PowerDown() error {
	d.ce.Low()
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	return d.writeRegister(regConfig, cfg&^bitPwrUp)
}

// Status returns the STATUS register.
func (d *Device) Status() (byte, error) {
	d.tx[0] = cmdNop
	if err := d.transfer(d.tx[:1], d.rx[:1]); err != nil {
		return 0, err
	}
	return d.rx[0], nil
}

func (d *Device) readRegister(reg byte) (byte, error) {
	d.tx[0] = cmdReadRegister | reg
	d.tx[1] = cmdNop
	if err := d.transfer(d.tx[:2], d.rx[:2]); err != nil {
		return 0, err
	}
	return d.rx[1], nil
}

func (d *Device) writeRegister(reg, val byte) error {
	d.tx[0] = cmdWriteRegister | reg
	d.tx[1] = val
	return d.transfer(d.tx[:2], d.rx[:2])
}

func (d *Device) writeRegisterN(reg byte, val []byte) error {
	d.tx[0] = cmdWriteRegister | reg
	n := copy(d.tx[1:], val)
	return d.transfer(d.tx[:1+n], d.rx[:1+n])
}

func (d *Device) flushTx() error {
	if err := d.command(cmdFlushTx); err != nil {
		return errors.New("nrf24 flush tx:" + err.Error())
	}
	return nil
}

func (d *Device) command(cmd byte) error {
	d.tx[0] = cmd
	return d.transfer(d.tx[:1], d.rx[:1])
}

func (d *Device) transfer(w, r []byte) error {
	d.csn.Low()
	err := d.bus.Tx(w, r)
	d.csn.High()
	return err
}

func retrValue(delay time.Duration, count uint8) byte {
	step := int(delay/(250*time.Microsecond)) - 1
	if step < 0 {
		step = 0
	}
	if step > 15 {
		step = 15
	}
	if count > 15 {
		count = 15
	}
	return byte(step)<<4 | count
}

func rfSetupValue(rate DataRate, pa PALevel) byte {
	v := byte(pa&3) << 1
	switch rate {
	case DataRate2Mbps:
		v |= bitRFDRHigh
	case DataRate250Kbps:
		v |= bitRFDRLow
	}
	return v
}
