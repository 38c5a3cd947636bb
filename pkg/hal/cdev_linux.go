// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package hal

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevPins reads switches and drives LEDs through the Linux GPIO character
// device. Lines are addressed by offset on one chip.
type CdevPins struct {
	inputs  *gpiocdev.Lines
	outputs []*gpiocdev.Line
	values  []int
}

// OpenCdevPins requests the input lines with pull-ups and the output lines
// driven inactive.
func OpenCdevPins(chip string, inputOffsets, outputOffsets []int) (*CdevPins, error) {
	c := &CdevPins{}

	if len(inputOffsets) > 0 {
		lines, err := gpiocdev.RequestLines(chip, inputOffsets,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithConsumer("dipwatch"))
		if err != nil {
			return nil, fmt.Errorf("failed to request input lines on %s: %w", chip, err)
		}
		c.inputs = lines
		c.values = make([]int, len(inputOffsets))
	}

	for _, offset := range outputOffsets {
		line, err := gpiocdev.RequestLine(chip, offset,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("dipwatch"))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to request output line %s:%d: %w", chip, offset, err)
		}
		c.outputs = append(c.outputs, line)
	}
	return c, nil
}

// ReadMask reads all input lines in one request; an active line sets the bit
func (c *CdevPins) ReadMask() (uint8, error) {
	if c.inputs == nil {
		return 0, errors.New("no input lines requested")
	}
	if err := c.inputs.Values(c.values); err != nil {
		return 0, err
	}
	var mask uint8
	for i, v := range c.values {
		if v != 0 {
			mask |= 1 << i
		}
	}
	return mask, nil
}

// SetPin drives one output line
func (c *CdevPins) SetPin(index int, level bool) error {
	if index < 0 || index >= len(c.outputs) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	v := 0
	if level {
		v = 1
	}
	return c.outputs[index].SetValue(v)
}

// Close reverts the outputs to inputs and releases all lines
func (c *CdevPins) Close() error {
	var errs []error
	for _, line := range c.outputs {
		errs = append(errs, line.Reconfigure(gpiocdev.AsInput))
		errs = append(errs, line.Close())
	}
	if c.inputs != nil {
		errs = append(errs, c.inputs.Close())
	}
	return errors.Join(errs...)
}
