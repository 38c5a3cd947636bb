// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dipmsg encodes the switch status reports sent to the browser and
// decodes the LED commands it sends back.
package dipmsg

import (
	"encoding/json"
	"fmt"
)

// NumSwitches is the number of DIP switches on the carrier board
const NumSwitches = 8

// Switch labels as shown on the web page
const (
	LabelOn  = "On"
	LabelOff = "Off"
)

// Switches is the sampled DIP switch vector, true meaning the switch is On
type Switches [NumSwitches]bool

// SwitchesFromMask converts a raw switch register where a set bit means
// the switch is Off (bit 0 is switch 1).
func SwitchesFromMask(mask uint8) Switches {
	var s Switches
	for i := 0; i < NumSwitches; i++ {
		s[i] = mask&(1<<i) == 0
	}
	return s
}

// Mask converts the vector back to register form
func (s Switches) Mask() uint8 {
	var mask uint8
	for i, on := range s {
		if !on {
			mask |= 1 << i
		}
	}
	return mask
}

// Labels returns the "On"/"Off" label for each switch in order
func (s Switches) Labels() [NumSwitches]string {
	var labels [NumSwitches]string
	for i, on := range s {
		labels[i] = Label(on)
	}
	return labels
}

// Label returns the fixed label for a switch state
func Label(on bool) string {
	if on {
		return LabelOn
	}
	return LabelOff
}

// DipSwitches is the inner object of a status report. Field order is the
// wire order.
type DipSwitches struct {
	Dip1 string `json:"dip1"`
	Dip2 string `json:"dip2"`
	Dip3 string `json:"dip3"`
	Dip4 string `json:"dip4"`
	Dip5 string `json:"dip5"`
	Dip6 string `json:"dip6"`
	Dip7 string `json:"dip7"`
	Dip8 string `json:"dip8"`
}

// StatusReport is the message pushed to the client every sampling cycle
type StatusReport struct {
	DipSwitches DipSwitches `json:"dipSwitches"`
}

// NewStatusReport builds a report from a switch vector
func NewStatusReport(s Switches) StatusReport {
	l := s.Labels()
	return StatusReport{DipSwitches: DipSwitches{
		Dip1: l[0], Dip2: l[1], Dip3: l[2], Dip4: l[3],
		Dip5: l[4], Dip6: l[5], Dip7: l[6], Dip8: l[7],
	}}
}

// EncodeStatus encodes a switch vector as a status report message
func EncodeStatus(s Switches) ([]byte, error) {
	data, err := json.Marshal(NewStatusReport(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode status report: %w", err)
	}
	return data, nil
}

// DecodeStatus parses a status report message back into a switch vector.
// Labels other than "On" and "Off" are rejected.
func DecodeStatus(data []byte) (Switches, error) {
	var report StatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		return Switches{}, fmt.Errorf("failed to decode status report: %w", err)
	}

	d := report.DipSwitches
	labels := [NumSwitches]string{d.Dip1, d.Dip2, d.Dip3, d.Dip4, d.Dip5, d.Dip6, d.Dip7, d.Dip8}

	var s Switches
	for i, label := range labels {
		switch label {
		case LabelOn:
			s[i] = true
		case LabelOff:
			s[i] = false
		default:
			return Switches{}, fmt.Errorf("%w: dip%d=%q", ErrNotStatus, i+1, label)
		}
	}
	return s, nil
}
