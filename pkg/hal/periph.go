// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// PeriphPins reads switches and drives LEDs through periph.io GPIO.
// Pins are addressed by name, e.g. "GPIO17" for BCM 17 on a Raspberry Pi.
type PeriphPins struct {
	inputs  []gpio.PinIO
	outputs []gpio.PinIO
}

// OpenPeriphPins initialises the periph host and claims the named pins.
// Inputs are configured with pull-ups so an open switch reads high (Off).
func OpenPeriphPins(inputs, outputs []string) (*PeriphPins, error) {
	// host.Init can safely be called multiple times
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}

	p := &PeriphPins{}
	for _, name := range inputs {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("unknown input pin %q", name)
		}
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure input %s: %w", name, err)
		}
		p.inputs = append(p.inputs, pin)
	}
	for _, name := range outputs {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("unknown output pin %q", name)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure output %s: %w", name, err)
		}
		p.outputs = append(p.outputs, pin)
	}
	return p, nil
}

// ReadMask reads every input pin; a high level sets the bit
func (p *PeriphPins) ReadMask() (uint8, error) {
	if len(p.inputs) == 0 {
		return 0, errors.New("no input pins configured")
	}
	var mask uint8
	for i, pin := range p.inputs {
		if pin.Read() == gpio.High {
			mask |= 1 << i
		}
	}
	return mask, nil
}

// SetPin drives one output pin
func (p *PeriphPins) SetPin(index int, level bool) error {
	if index < 0 || index >= len(p.outputs) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return p.outputs[index].Out(gpio.Level(level))
}

// Close releases the pins back to inputs
func (p *PeriphPins) Close() error {
	var errs []error
	for _, pin := range p.outputs {
		errs = append(errs, pin.Halt())
	}
	return errors.Join(errs...)
}

//////////////////////////////////////////////////////////////
// Analog
//////////////////////////////////////////////////////////////

// AnalogADC exposes a set of periph analog pins as numbered channels
type AnalogADC struct {
	pins   []analog.PinADC
	closer func() error
}

// NewAnalogADC wraps already-opened analog pins; channel n is pins[n]
func NewAnalogADC(pins []analog.PinADC) *AnalogADC {
	return &AnalogADC{pins: pins}
}

// Read returns the raw conversion result for one channel
func (a *AnalogADC) Read(channel int) (int32, error) {
	if channel < 0 || channel >= len(a.pins) {
		return 0, fmt.Errorf("%w: channel %d", ErrIndexOutOfRange, channel)
	}
	sample, err := a.pins[channel].Read()
	if err != nil {
		return 0, err
	}
	return sample.Raw, nil
}

// Close halts the pins and releases the bus
func (a *AnalogADC) Close() error {
	var errs []error
	for _, pin := range a.pins {
		errs = append(errs, pin.Halt())
	}
	if a.closer != nil {
		errs = append(errs, a.closer())
	}
	return errors.Join(errs...)
}

var ads1115Channels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// OpenADS1115 opens one ADS1115 per address on the named I2C bus (empty
// name selects the first bus). Each chip contributes four single-ended
// channels, so two chips cover all eight switches.
func OpenADS1115(busName string, addresses []uint16) (*AnalogADC, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}

	pins, err := openADS1115Pins(bus, addresses)
	if err != nil {
		bus.Close()
		return nil, err
	}

	a := NewAnalogADC(pins)
	a.closer = bus.Close
	return a, nil
}

func openADS1115Pins(bus i2c.Bus, addresses []uint16) ([]analog.PinADC, error) {
	var pins []analog.PinADC
	for _, addr := range addresses {
		dev, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
		if err != nil {
			return nil, fmt.Errorf("ads1115 at 0x%02X: %w", addr, err)
		}
		for _, ch := range ads1115Channels {
			pin, err := dev.PinForChannel(ch, 5*physic.Volt, 250*physic.Hertz, ads1x15.BestQuality)
			if err != nil {
				return nil, fmt.Errorf("ads1115 at 0x%02X channel %v: %w", addr, ch, err)
			}
			pins = append(pins, pin)
		}
	}
	return pins, nil
}
