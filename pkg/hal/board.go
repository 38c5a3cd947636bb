// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"errors"
	"fmt"
)

// Backend names accepted by Open
const (
	BackendSim    = "sim"
	BackendPeriph = "periph"
	BackendCdev   = "cdev"
	BackendADC    = "adc"
	BackendSerial = "serial"
)

// Backends lists every supported backend
var Backends = []string{BackendSim, BackendPeriph, BackendCdev, BackendADC, BackendSerial}

// Options selects and configures a backend
type Options struct {
	Backend string
	Profile Profile

	// Serial bridge settings (serial backend only)
	SerialPort string
	BaudRate   int

	// Initial switch register for the simulator
	SimMask uint8
}

// Board bundles the switch sampler and LED actuator of one backend
type Board struct {
	Sampler  Sampler
	Actuator *Outputs

	// Sim is set when the simulator backend is in use
	Sim *Sim

	closers []func() error
}

// Close releases every resource held by the board
func (b *Board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// Open builds a board for the selected backend.
//
//   - sim:    simulated switches and LEDs
//   - periph: switches and LEDs on periph.io GPIO pins
//   - cdev:   switches and LEDs on Linux GPIO character device lines
//   - adc:    switches through ADS1115 converters, LEDs on periph.io GPIO
//   - serial: switches from a serial bridge, LEDs on periph.io GPIO
func Open(opts Options) (*Board, error) {
	p := opts.Profile
	b := &Board{}

	switch opts.Backend {
	case BackendSim, "":
		sim := NewSim(opts.SimMask)
		b.Sim = sim
		b.Sampler = sim
		b.Actuator = NewOutputs(sim, p.ActiveLow)
		return b, nil

	case BackendPeriph:
		pins, err := OpenPeriphPins(p.Inputs, p.Outputs)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pins.Close)
		b.Sampler = pins
		b.Actuator = NewOutputs(pins, p.ActiveLow)
		return b, nil

	case BackendCdev:
		pins, err := OpenCdevPins(p.Chip, p.InputOffsets, p.OutputOffsets)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pins.Close)
		b.Sampler = pins
		b.Actuator = NewOutputs(pins, p.ActiveLow)
		return b, nil

	case BackendADC:
		adc, err := OpenADS1115(p.ADC.Bus, p.ADC.Addresses)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, adc.Close)
		b.Sampler = NewADCSampler(adc, p.ADCChannels(), p.ADC.Threshold)
		if err := b.openPeriphOutputs(p); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil

	case BackendSerial:
		if opts.SerialPort == "" {
			return nil, errors.New("serial backend requires a port")
		}
		sampler, err := OpenSerialSampler(opts.SerialPort, opts.BaudRate)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, sampler.Close)
		b.Sampler = sampler
		if err := b.openPeriphOutputs(p); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown hal backend %q (want one of %v)", opts.Backend, Backends)
	}
}

func (b *Board) openPeriphOutputs(p Profile) error {
	pins, err := OpenPeriphPins(nil, p.Outputs)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, pins.Close)
	b.Actuator = NewOutputs(pins, p.ActiveLow)
	return nil
}
