// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// ErrNoSample is returned before the first register byte has arrived
var ErrNoSample = errors.New("no switch sample received yet")

// SerialSampler takes the switch register from a microcontroller wired to
// the DIP header that streams the raw register as single bytes. The most
// recent byte is the current state.
type SerialSampler struct {
	port io.ReadCloser

	mu      sync.Mutex
	mask    uint8
	hasMask bool
	err     error
	done    chan struct{}
}

// OpenSerialSampler opens the bridge port and starts reading
func OpenSerialSampler(portName string, baudRate int) (*SerialSampler, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return NewSerialSampler(port), nil
}

// NewSerialSampler starts reading register bytes from an open port
func NewSerialSampler(port io.ReadCloser) *SerialSampler {
	s := &SerialSampler{
		port: port,
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *SerialSampler) readLoop() {
	defer close(s.done)
	buf := make([]byte, 64)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.mask = buf[n-1]
			s.hasMask = true
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

// ReadMask returns the latest register byte
func (s *SerialSampler) ReadMask() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, fmt.Errorf("serial bridge: %w", s.err)
	}
	if !s.hasMask {
		return 0, ErrNoSample
	}
	return s.mask, nil
}

// Close closes the port and waits for the reader to exit
func (s *SerialSampler) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}
