// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dipmsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NumLEDs is the number of LED outputs addressable from the client
const NumLEDs = 8

// LEDFieldPrefix is the fixed prefix of the single command field; the
// LED index follows as a decimal number.
const LEDFieldPrefix = "ledcb"

var (
	// ErrMalformedField is returned for commands that cannot address an LED
	ErrMalformedField = errors.New("malformed command field")

	// ErrNotStatus is returned when a message is not a status report
	ErrNotStatus = errors.New("not a status report")
)

// Command is one decoded LED actuation request
type Command struct {
	Index int
	Value BoolValue
}

// On returns the level to drive. Unparseable values drive the LED off.
func (c Command) On() bool {
	return c.Value.Bool()
}

// DecodeCommand parses a completed frame into a Command.
// The frame must be an object with exactly one field named ledcb0..ledcb7.
func DecodeCommand(data []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	// A map collapses repeated keys, so count them on the raw frame
	count, err := countFields(data)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedField, err)
	}
	if count != 1 || len(fields) != 1 {
		return Command{}, fmt.Errorf("%w: expected 1 field, got %d", ErrMalformedField, count)
	}

	var name string
	var raw json.RawMessage
	for name, raw = range fields {
	}

	index, err := ParseLEDField(name)
	if err != nil {
		return Command{}, err
	}
	return Command{Index: index, Value: ParseBool(raw)}, nil
}

// countFields returns the number of top-level keys in a JSON object,
// counting repeated keys each time they appear
func countFields(data []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return 0, err
	}
	count := 0
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return 0, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// ParseLEDField extracts the LED index from a field name such as "ledcb3"
func ParseLEDField(name string) (int, error) {
	suffix, ok := strings.CutPrefix(name, LEDFieldPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: field %q lacks prefix %q", ErrMalformedField, name, LEDFieldPrefix)
	}
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return 0, fmt.Errorf("%w: field %q has non-numeric index", ErrMalformedField, name)
	}
	index, err := strconv.Atoi(suffix)
	if err != nil || index < 0 || index >= NumLEDs {
		return 0, fmt.Errorf("%w: field %q index out of range 0-%d", ErrMalformedField, name, NumLEDs-1)
	}
	return index, nil
}

// LEDField returns the command field name for an LED index
func LEDField(index int) string {
	return LEDFieldPrefix + strconv.Itoa(index)
}

// EncodeCommand builds the message a client sends to switch one LED
func EncodeCommand(index int, on bool) ([]byte, error) {
	if index < 0 || index >= NumLEDs {
		return nil, fmt.Errorf("%w: index %d out of range 0-%d", ErrMalformedField, index, NumLEDs-1)
	}
	return json.Marshal(map[string]bool{LEDField(index): on})
}
