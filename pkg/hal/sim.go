// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"sync"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

// Sim is an in-memory board for running without hardware. Switches are
// set with SetMask and every pin write is recorded.
type Sim struct {
	mu     sync.Mutex
	mask   uint8
	levels [dipmsg.NumLEDs]bool
	writes int
}

// NewSim creates a simulated board with the given switch register
func NewSim(mask uint8) *Sim {
	return &Sim{mask: mask}
}

// SetMask changes the simulated switch register
func (s *Sim) SetMask(mask uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask = mask
}

// ReadMask returns the simulated switch register
func (s *Sim) ReadMask() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask, nil
}

// SetPin records a pin level
func (s *Sim) SetPin(index int, level bool) error {
	if index < 0 || index >= dipmsg.NumLEDs {
		return ErrIndexOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[index] = level
	s.writes++
	return nil
}

// Levels returns the recorded pin levels
func (s *Sim) Levels() [dipmsg.NumLEDs]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels
}

// Writes returns how many pin writes have been made
func (s *Sim) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Read makes Sim usable as an ADC: channel n reads full scale when bit n
// of the register is set and zero otherwise.
func (s *Sim) Read(channel int) (int32, error) {
	if channel < 0 || channel >= dipmsg.NumSwitches {
		return 0, ErrIndexOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mask&(1<<channel) != 0 {
		return 0x7FFF, nil
	}
	return 0, nil
}
