// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hal is the hardware abstraction layer for the DIP switch inputs
// and LED outputs. Backends exist for periph.io GPIO and ADCs, the Linux
// GPIO character device, a serial bridge and a simulator for running on a
// desktop machine.
package hal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

// ErrIndexOutOfRange is returned when an output index does not exist
var ErrIndexOutOfRange = errors.New("output index out of range")

// Sampler reads the current switch register. A set bit means the switch
// is Off, bit 0 is switch 1.
type Sampler interface {
	ReadMask() (uint8, error)
}

// ADC samples one analog channel and returns the raw conversion result
type ADC interface {
	Read(channel int) (int32, error)
}

// OutputPins drives the physical LED pins
type OutputPins interface {
	SetPin(index int, level bool) error
}

// Actuator applies LED commands and remembers the last level of each LED
type Actuator interface {
	Set(index int, on bool) error
	State() [dipmsg.NumLEDs]bool
}

// SampleSwitches reads the register through s and converts it to a switch vector
func SampleSwitches(s Sampler) (dipmsg.Switches, error) {
	mask, err := s.ReadMask()
	if err != nil {
		return dipmsg.Switches{}, err
	}
	return dipmsg.SwitchesFromMask(mask), nil
}

//////////////////////////////////////////////////////////////
// ADC Sampler
//////////////////////////////////////////////////////////////

// DefaultADCChannels maps logical switch i to its ADC channel on the
// MOD-DEV-70 carrier (J2 pins 8, 6, 7, 10, 9, 11, 12, 13).
var DefaultADCChannels = [dipmsg.NumSwitches]int{7, 6, 5, 3, 4, 1, 0, 2}

// DefaultADCThreshold is half of the positive 16-bit range. Readings
// above it are logic high, which means the switch is Off.
const DefaultADCThreshold int32 = 0x7FFF / 2

// ADCSampler derives the switch register from analog readings
type ADCSampler struct {
	adc       ADC
	channels  [dipmsg.NumSwitches]int
	threshold int32
}

// NewADCSampler creates a sampler reading channels[i] for switch i
func NewADCSampler(adc ADC, channels [dipmsg.NumSwitches]int, threshold int32) *ADCSampler {
	return &ADCSampler{adc: adc, channels: channels, threshold: threshold}
}

// ReadMask samples every channel and thresholds the results
func (a *ADCSampler) ReadMask() (uint8, error) {
	var mask uint8
	for i, ch := range a.channels {
		raw, err := a.adc.Read(ch)
		if err != nil {
			return 0, fmt.Errorf("adc channel %d: %w", ch, err)
		}
		if raw > a.threshold {
			mask |= 1 << i
		}
	}
	return mask, nil
}

//////////////////////////////////////////////////////////////
// Outputs
//////////////////////////////////////////////////////////////

// Outputs tracks the LED output vector on top of a pin driver.
// Only the addressed index changes on each Set.
type Outputs struct {
	pins      OutputPins
	activeLow bool

	mu    sync.Mutex
	state [dipmsg.NumLEDs]bool
}

// NewOutputs creates an actuator. With activeLow set, an LED that is on
// is driven low.
func NewOutputs(pins OutputPins, activeLow bool) *Outputs {
	return &Outputs{pins: pins, activeLow: activeLow}
}

// Set drives one LED
func (o *Outputs) Set(index int, on bool) error {
	if index < 0 || index >= dipmsg.NumLEDs {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.pins.SetPin(index, on != o.activeLow); err != nil {
		return fmt.Errorf("led %d: %w", index, err)
	}
	o.state[index] = on
	return nil
}

// State returns a copy of the LED output vector
func (o *Outputs) State() [dipmsg.NumLEDs]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
