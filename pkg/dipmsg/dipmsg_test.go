// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dipmsg

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Status Report Tests
// ============================================================

func TestEncodeStatus_AllOn(t *testing.T) {
	data, err := EncodeStatus(SwitchesFromMask(0x00))
	if err != nil {
		t.Fatalf("EncodeStatus error: %v", err)
	}
	want := `{"dipSwitches":{"dip1":"On","dip2":"On","dip3":"On","dip4":"On","dip5":"On","dip6":"On","dip7":"On","dip8":"On"}}`
	if string(data) != want {
		t.Errorf("EncodeStatus = %s\nwant %s", data, want)
	}
}

func TestEncodeStatus_FieldOrderAndLabels(t *testing.T) {
	// Bits 0, 2 and 7 set: switches 1, 3 and 8 are Off
	data, err := EncodeStatus(SwitchesFromMask(0x85))
	if err != nil {
		t.Fatalf("EncodeStatus error: %v", err)
	}
	want := `{"dipSwitches":{"dip1":"Off","dip2":"On","dip3":"Off","dip4":"On","dip5":"On","dip6":"On","dip7":"On","dip8":"Off"}}`
	if string(data) != want {
		t.Errorf("EncodeStatus = %s\nwant %s", data, want)
	}
}

func TestEncodeStatus_Idempotent(t *testing.T) {
	sw := SwitchesFromMask(0x5A)
	first, _ := EncodeStatus(sw)
	second, _ := EncodeStatus(sw)
	if string(first) != string(second) {
		t.Errorf("encoding differs between calls:\n%s\n%s", first, second)
	}
}

func TestSwitchesMask_RoundTrip(t *testing.T) {
	for mask := 0; mask < 256; mask++ {
		if got := SwitchesFromMask(uint8(mask)).Mask(); got != uint8(mask) {
			t.Fatalf("Mask(SwitchesFromMask(0x%02X)) = 0x%02X", mask, got)
		}
	}
}

func TestDecodeStatus(t *testing.T) {
	data, _ := EncodeStatus(SwitchesFromMask(0x0F))
	sw, err := DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus error: %v", err)
	}
	if sw.Mask() != 0x0F {
		t.Errorf("Mask() = 0x%02X, want 0x0F", sw.Mask())
	}

	_, err = DecodeStatus([]byte(`{"ledcb1":true}`))
	if !errors.Is(err, ErrNotStatus) {
		t.Errorf("DecodeStatus(command) error = %v, want ErrNotStatus", err)
	}

	_, err = DecodeStatus([]byte(`{"dipSwitches":`))
	if err == nil || errors.Is(err, ErrNotStatus) {
		t.Errorf("DecodeStatus(truncated) error = %v, want syntax error", err)
	}
}

// ============================================================
// Command Tests
// ============================================================

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
		wantValue BoolValue
	}{
		{name: "led 3 on", input: `{"ledcb3":true}`, wantIndex: 3, wantValue: True},
		{name: "led 0 off", input: `{"ledcb0":false}`, wantIndex: 0, wantValue: False},
		{name: "led 7 string on", input: `{"ledcb7":"on"}`, wantIndex: 7, wantValue: True},
		{name: "numeric value", input: `{"ledcb5":1}`, wantIndex: 5, wantValue: True},
		{name: "whitespace", input: " { \"ledcb2\" : true } ", wantIndex: 2, wantValue: True},
		{name: "unparseable value", input: `{"ledcb4":"maybe"}`, wantIndex: 4, wantValue: Unparseable},
		{name: "null value", input: `{"ledcb6":null}`, wantIndex: 6, wantValue: Unparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeCommand error: %v", err)
			}
			if cmd.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", cmd.Index, tt.wantIndex)
			}
			if cmd.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", cmd.Value, tt.wantValue)
			}
		})
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "index out of range", input: `{"ledcb8":true}`},
		{name: "negative index", input: `{"ledcb-1":true}`},
		{name: "non-numeric suffix", input: `{"ledcbx":true}`},
		{name: "missing suffix", input: `{"ledcb":true}`},
		{name: "wrong prefix", input: `{"led3":true}`},
		{name: "two fields", input: `{"ledcb1":true,"ledcb2":true}`},
		{name: "repeated field", input: `{"ledcb1":true,"ledcb1":false}`},
		{name: "empty object", input: `{}`},
		{name: "not an object", input: `[1,2]`},
		{name: "truncated", input: `{"ledcb1":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.input))
			if !errors.Is(err, ErrMalformedField) {
				t.Errorf("error = %v, want ErrMalformedField", err)
			}
		})
	}
}

func TestCommand_UnparseableDrivesOff(t *testing.T) {
	cmd := Command{Index: 1, Value: Unparseable}
	if cmd.On() {
		t.Error("unparseable value should drive the LED off")
	}
}

func TestEncodeCommand(t *testing.T) {
	data, err := EncodeCommand(3, true)
	if err != nil {
		t.Fatalf("EncodeCommand error: %v", err)
	}
	if string(data) != `{"ledcb3":true}` {
		t.Errorf("EncodeCommand = %s", data)
	}

	cmd, err := DecodeCommand(data)
	if err != nil || cmd.Index != 3 || !cmd.On() {
		t.Errorf("DecodeCommand(EncodeCommand(3, true)) = %+v, %v", cmd, err)
	}

	if _, err := EncodeCommand(NumLEDs, true); !errors.Is(err, ErrMalformedField) {
		t.Errorf("EncodeCommand(out of range) error = %v", err)
	}
}

// ============================================================
// Boolean Parsing Tests
// ============================================================

func TestParseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want BoolValue
	}{
		{`true`, True},
		{`false`, False},
		{`0`, False},
		{`2.5`, True},
		{`"TRUE"`, True},
		{`"Off"`, False},
		{`" yes "`, True},
		{`"no"`, False},
		{`"1"`, True},
		{`"banana"`, Unparseable},
		{`null`, Unparseable},
		{`{}`, Unparseable},
		{``, Unparseable},
		{`tru`, Unparseable},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseBool(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("ParseBool(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	s.Update(SwitchesFromMask(0x00), nil)
	s.Update(SwitchesFromMask(0x00), nil)
	s.Update(SwitchesFromMask(0x01), nil)
	s.Update(Switches{}, ErrNotStatus)
	s.Update(Switches{}, errors.New("bad json"))
	s.RecordCommand(nil)
	s.RecordCommand(errors.New("write failed"))

	if s.TotalMessages != 5 {
		t.Errorf("TotalMessages = %d, want 5", s.TotalMessages)
	}
	if s.StatusReports != 3 {
		t.Errorf("StatusReports = %d, want 3", s.StatusReports)
	}
	if s.SwitchChanges != 1 {
		t.Errorf("SwitchChanges = %d, want 1", s.SwitchChanges)
	}
	if s.UnknownShape != 1 || s.DecodeErrors != 1 {
		t.Errorf("UnknownShape = %d, DecodeErrors = %d; want 1, 1", s.UnknownShape, s.DecodeErrors)
	}
	if s.CommandsSent != 1 || s.CommandsFailed != 1 {
		t.Errorf("CommandsSent = %d, CommandsFailed = %d; want 1, 1", s.CommandsSent, s.CommandsFailed)
	}

	out := s.String()
	for _, want := range []string{"Total Messages:", "Switch Changes:", "Unknown Shape:", "Commands Sent:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalMessages != 0 || s.SwitchChanges != 0 {
		t.Error("Reset did not clear counters")
	}
}
