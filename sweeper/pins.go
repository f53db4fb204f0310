//go:build tinygo

package main

import (
	"errors"
	"machine"
	"time"

	"github.com/harveysanders/picosweep/sweeper/led"
)

// Wiring:
//
//	nRF24  SCK GP18, MOSI GP19, MISO GP16, CSN GP17, CE GP20
//	LED    red GP14, green GP15, blue GP13 (common cathode)
//	LCD    I2C0 SDA GP4, SCL GP5
const (
	pinSCK   = machine.GP18
	pinMOSI  = machine.GP19
	pinMISO  = machine.GP16
	pinCSN   = machine.GP17
	pinCE    = machine.GP20
	pinRed   = machine.GP14
	pinGreen = machine.GP15
	pinBlue  = machine.GP13
	pinSDA   = machine.GP4
	pinSCL   = machine.GP5
)

// pwmPeriod is a 1 kHz carrier; the RP2040 divider cannot go much slower.
const pwmPeriod = uint64(time.Millisecond)

// pwmSlice is a configured RP2040 PWM peripheral.
type pwmSlice interface {
	led.PWMSlice
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
}

// setupLEDs configures the three LED channels on their PWM slices.
// GP14 and GP15 share slice 7; GP13 is slice 6 channel B.
func setupLEDs() (*led.RGB, error) {
	red, err := pwmOutput(machine.PWM7, pinRed)
	if err != nil {
		return nil, errors.New("red led:" + err.Error())
	}
	green, err := pwmOutput(machine.PWM7, pinGreen)
	if err != nil {
		return nil, errors.New("green led:" + err.Error())
	}
	blue, err := pwmOutput(machine.PWM6, pinBlue)
	if err != nil {
		return nil, errors.New("blue led:" + err.Error())
	}
	return &led.RGB{
		Red:   led.NewChannel("red", red),
		Green: led.NewChannel("green", green),
		Blue:  led.NewChannel("blue", blue),
	}, nil
}

func pwmOutput(slice pwmSlice, pin machine.Pin) (led.PWMOutput, error) {
	if err := slice.Configure(machine.PWMConfig{Period: pwmPeriod}); err != nil {
		return led.PWMOutput{}, err
	}
	ch, err := slice.Channel(pin)
	if err != nil {
		return led.PWMOutput{}, err
	}
	out := led.PWMOutput{Slice: slice, Channel: ch}
	return out, out.SetDuty(0)
}

func setupSPI() (*machine.SPI, error) {
	spi := machine.SPI0
	err := spi.Configure(machine.SPIConfig{
		Frequency: 4 * machine.MHz,
		SCK:       pinSCK,
		SDO:       pinMOSI,
		SDI:       pinMISO,
		Mode:      0,
	})
	if err != nil {
		return nil, errors.New("configure SPI:" + err.Error())
	}
	pinCSN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinCE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinCSN.High()
	pinCE.Low()
	return spi, nil
}
