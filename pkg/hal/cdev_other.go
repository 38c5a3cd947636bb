// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package hal

import "errors"

// CdevPins is only available on Linux
type CdevPins struct{}

// OpenCdevPins always fails on platforms without the GPIO character device
func OpenCdevPins(chip string, inputOffsets, outputOffsets []int) (*CdevPins, error) {
	return nil, errors.New("gpio character device requires linux")
}

// ReadMask is unsupported off Linux
func (c *CdevPins) ReadMask() (uint8, error) {
	return 0, errors.ErrUnsupported
}

// SetPin is unsupported off Linux
func (c *CdevPins) SetPin(index int, level bool) error {
	return errors.ErrUnsupported
}

// Close has nothing to release
func (c *CdevPins) Close() error {
	return nil
}
