// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package framer delimits JSON objects arriving one byte at a time on a
// stream. It only tracks brace nesting and string/escape context; it does
// not validate JSON. Unescaped braces count toward nesting even inside a
// string, so string values must not carry raw braces.
package framer

import (
	"errors"
	"fmt"
)

// DefaultCapacity matches the device report buffer size.
const DefaultCapacity = 512

// Framing bytes
const (
	openBrace  = '{'
	closeBrace = '}'
	quote      = '"'
	backslash  = '\\'
)

// Signal is the result of consuming one byte
type Signal int

const (
	NeedMore Signal = iota
	FrameComplete
)

func (s Signal) String() string {
	switch s {
	case NeedMore:
		return "NEED_MORE"
	case FrameComplete:
		return "FRAME_COMPLETE"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// ErrOverflow is returned when a frame does not complete within the
// configured capacity. The partial frame is kept until Reset.
var ErrOverflow = errors.New("frame buffer overflow")

// State is the parse state carried between bytes
type State struct {
	Depth      int
	InString   bool
	EscapeNext bool
}

// Framer accumulates bytes until one top-level object is complete
type Framer struct {
	state    State
	buffer   []byte
	capacity int
	complete bool

	frames    uint64
	overflows uint64
}

// New creates a framer with the given buffer capacity. A capacity <= 0
// selects DefaultCapacity.
func New(capacity int) *Framer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Framer{
		buffer:   make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Reset discards any partial frame and returns to the initial state
func (f *Framer) Reset() {
	f.state = State{}
	f.buffer = f.buffer[:0]
	f.complete = false
}

// State returns the current parse state
func (f *Framer) State() State {
	return f.state
}

// Capacity returns the configured buffer capacity
func (f *Framer) Capacity() int {
	return f.capacity
}

// Len returns the number of bytes accumulated for the current frame
func (f *Framer) Len() int {
	return len(f.buffer)
}

// Frame returns the bytes of the last completed frame. It is only valid
// after Consume returned FrameComplete and before the next Reset or Consume.
func (f *Framer) Frame() []byte {
	if !f.complete {
		return nil
	}
	return f.buffer
}

// Consume feeds one byte through the framer.
// Returns FrameComplete when the closing brace returns nesting to zero.
// Returns ErrOverflow if the byte does not fit in the buffer.
func (f *Framer) Consume(b byte) (Signal, error) {
	// A completed frame must be reset before the next one starts
	if f.complete {
		f.Reset()
	}

	// Bytes between frames are skipped until an opening brace starts one
	if f.state.Depth == 0 && b != openBrace {
		return NeedMore, nil
	}

	if len(f.buffer) >= f.capacity {
		f.overflows++
		return NeedMore, fmt.Errorf("%w: %d bytes without a complete frame", ErrOverflow, len(f.buffer))
	}
	f.buffer = append(f.buffer, b)

	s := &f.state
	switch b {
	case backslash:
		if !s.InString {
			// Outside strings a backslash is inert
			return NeedMore, nil
		}
		s.EscapeNext = !s.EscapeNext
		return NeedMore, nil

	case quote:
		if s.EscapeNext {
			s.EscapeNext = false
			return NeedMore, nil
		}
		s.InString = !s.InString
		return NeedMore, nil

	case openBrace:
		if s.EscapeNext {
			s.EscapeNext = false
			return NeedMore, nil
		}
		s.Depth++
		return NeedMore, nil

	case closeBrace:
		if s.EscapeNext {
			s.EscapeNext = false
			return NeedMore, nil
		}
		s.Depth--
		if s.Depth == 0 {
			f.complete = true
			f.frames++
			return FrameComplete, nil
		}
		return NeedMore, nil

	default:
		s.EscapeNext = false
		return NeedMore, nil
	}
}

// Feed consumes a chunk of bytes, calling onFrame for every completed frame.
// On overflow the partial frame is discarded and feeding continues with the
// next byte; the overflow error is passed to onError if it is non-nil.
// The slice given to onFrame is only valid for the duration of the call.
func (f *Framer) Feed(data []byte, onFrame func([]byte), onError func(error)) {
	for _, b := range data {
		sig, err := f.Consume(b)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			f.Reset()
			// Re-feed the byte that did not fit so a frame starting here is kept
			sig, err = f.Consume(b)
			if err != nil {
				continue
			}
		}
		if sig == FrameComplete {
			onFrame(f.Frame())
			f.Reset()
		}
	}
}

// Statistics holds framer counters
type Statistics struct {
	Frames    uint64
	Overflows uint64
}

// Statistics returns counters accumulated since creation
func (f *Framer) Statistics() Statistics {
	return Statistics{Frames: f.frames, Overflows: f.overflows}
}
