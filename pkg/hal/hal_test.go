// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

// fakeADC returns fixed readings per channel
type fakeADC struct {
	readings map[int]int32
	err      error
	reads    []int
}

func (f *fakeADC) Read(channel int) (int32, error) {
	f.reads = append(f.reads, channel)
	if f.err != nil {
		return 0, f.err
	}
	return f.readings[channel], nil
}

// ============================================================
// ADC Sampler Tests
// ============================================================

func TestADCSampler_Threshold(t *testing.T) {
	adc := &fakeADC{readings: map[int]int32{
		7: DefaultADCThreshold + 1, // switch 1 high -> Off
		6: DefaultADCThreshold,     // switch 2 exactly at threshold -> On
		2: 0x7FFF,                  // switch 8 high -> Off
	}}
	s := NewADCSampler(adc, DefaultADCChannels, DefaultADCThreshold)

	mask, err := s.ReadMask()
	if err != nil {
		t.Fatalf("ReadMask error: %v", err)
	}
	if mask != 0x81 {
		t.Errorf("mask = 0x%02X, want 0x81", mask)
	}

	want := []int{7, 6, 5, 3, 4, 1, 0, 2}
	if len(adc.reads) != len(want) {
		t.Fatalf("read %d channels, want %d", len(adc.reads), len(want))
	}
	for i, ch := range want {
		if adc.reads[i] != ch {
			t.Errorf("read %d: channel %d, want %d", i, adc.reads[i], ch)
		}
	}
}

func TestADCSampler_Error(t *testing.T) {
	boom := errors.New("conversion timeout")
	s := NewADCSampler(&fakeADC{err: boom}, DefaultADCChannels, DefaultADCThreshold)
	if _, err := s.ReadMask(); !errors.Is(err, boom) {
		t.Errorf("ReadMask error = %v, want %v", err, boom)
	}
}

func TestADCSampler_WithSim(t *testing.T) {
	// Identity channel map: the sim register passes straight through
	sim := NewSim(0xA5)
	s := NewADCSampler(sim, [dipmsg.NumSwitches]int{0, 1, 2, 3, 4, 5, 6, 7}, DefaultADCThreshold)
	mask, err := s.ReadMask()
	if err != nil {
		t.Fatalf("ReadMask error: %v", err)
	}
	if mask != 0xA5 {
		t.Errorf("mask = 0x%02X, want 0xA5", mask)
	}
}

func TestSampleSwitches_Idempotent(t *testing.T) {
	sim := NewSim(0x3C)
	first, err := SampleSwitches(sim)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := SampleSwitches(sim)
	if first != second {
		t.Errorf("samples differ without a state change: %v vs %v", first, second)
	}
	if first.Mask() != 0x3C {
		t.Errorf("Mask() = 0x%02X, want 0x3C", first.Mask())
	}
}

// ============================================================
// Outputs Tests
// ============================================================

func TestOutputs_SetTouchesOnlyIndex(t *testing.T) {
	sim := NewSim(0)
	out := NewOutputs(sim, false)

	if err := out.Set(3, true); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	state := out.State()
	for i, on := range state {
		if on != (i == 3) {
			t.Errorf("state[%d] = %v", i, on)
		}
	}
	if sim.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", sim.Writes())
	}
}

func TestOutputs_ActiveLow(t *testing.T) {
	sim := NewSim(0)
	out := NewOutputs(sim, true)

	out.Set(0, true)
	out.Set(1, false)

	levels := sim.Levels()
	if levels[0] != false || levels[1] != true {
		t.Errorf("levels = %v, want [false true ...]", levels[:2])
	}
	if state := out.State(); !state[0] || state[1] {
		t.Errorf("state = %v, want [true false ...]", state[:2])
	}
}

func TestOutputs_OutOfRange(t *testing.T) {
	sim := NewSim(0)
	out := NewOutputs(sim, false)

	for _, idx := range []int{-1, dipmsg.NumLEDs} {
		if err := out.Set(idx, true); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Set(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
	if sim.Writes() != 0 {
		t.Errorf("out of range Set wrote %d pins", sim.Writes())
	}
}

// ============================================================
// Serial Sampler Tests
// ============================================================

func TestSerialSampler_LatestByteWins(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerialSampler(r)
	defer s.Close()

	if _, err := s.ReadMask(); !errors.Is(err, ErrNoSample) {
		t.Fatalf("ReadMask before data error = %v, want ErrNoSample", err)
	}

	w.Write([]byte{0x01, 0x02, 0xF0})

	deadline := time.Now().Add(time.Second)
	for {
		mask, err := s.ReadMask()
		if err == nil && mask == 0xF0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ReadMask = 0x%02X, %v; want 0xF0", mask, err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSerialSampler_ReadError(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerialSampler(r)

	w.CloseWithError(errors.New("unplugged"))
	<-s.done

	if _, err := s.ReadMask(); err == nil || !strings.Contains(err.Error(), "unplugged") {
		t.Errorf("ReadMask error = %v, want unplugged", err)
	}
}

// ============================================================
// Profile Tests
// ============================================================

func TestParseProfile_OverridesDefaults(t *testing.T) {
	p, err := ParseProfile([]byte(`
name: bench
active_low: true
adc:
  channels: [0, 1, 2, 3, 4, 5, 6, 7]
  threshold: 1000
`))
	if err != nil {
		t.Fatalf("ParseProfile error: %v", err)
	}
	if p.Name != "bench" || !p.ActiveLow {
		t.Errorf("Name = %q, ActiveLow = %v", p.Name, p.ActiveLow)
	}
	if p.ADC.Threshold != 1000 {
		t.Errorf("Threshold = %d, want 1000", p.ADC.Threshold)
	}
	if p.ADCChannels() != [dipmsg.NumSwitches]int{0, 1, 2, 3, 4, 5, 6, 7} {
		t.Errorf("ADCChannels() = %v", p.ADCChannels())
	}
	// Untouched fields keep their defaults
	if len(p.Outputs) != dipmsg.NumLEDs || p.Chip != "gpiochip0" {
		t.Errorf("defaults lost: Outputs = %v, Chip = %q", p.Outputs, p.Chip)
	}
	if len(p.ADC.Addresses) != 2 {
		t.Errorf("Addresses = %v", p.ADC.Addresses)
	}
}

func TestParseProfile_Empty(t *testing.T) {
	p, err := ParseProfile(nil)
	if err != nil {
		t.Fatalf("ParseProfile error: %v", err)
	}
	if p.ADCChannels() != DefaultADCChannels {
		t.Errorf("ADCChannels() = %v, want defaults", p.ADCChannels())
	}
}

func TestDefaultProfile_OwnsChannelMap(t *testing.T) {
	want := DefaultADCChannels
	p := DefaultProfile()
	p.ADC.Channels[0] = 99
	if DefaultADCChannels != want {
		t.Fatalf("DefaultADCChannels changed to %v", DefaultADCChannels)
	}
	if got := DefaultProfile().ADC.Channels[0]; got != want[0] {
		t.Errorf("fresh profile channel 0 = %d, want %d", got, want[0])
	}
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "too few inputs", yaml: "inputs: [GPIO1, GPIO2]"},
		{name: "unknown field", yaml: "leds: 8"},
		{name: "negative offset", yaml: "input_offsets: [-1, 1, 2, 3, 4, 5, 6, 7]"},
		{name: "bad i2c address", yaml: "adc:\n  addresses: [512]"},
		{name: "not yaml", yaml: "inputs: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================
// Board Tests
// ============================================================

func TestOpen_Sim(t *testing.T) {
	b, err := Open(Options{Backend: BackendSim, Profile: DefaultProfile(), SimMask: 0xFF})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer b.Close()

	if b.Sim == nil {
		t.Fatal("Sim not set for sim backend")
	}
	sw, err := SampleSwitches(b.Sampler)
	if err != nil {
		t.Fatal(err)
	}
	if sw != (dipmsg.Switches{}) {
		t.Errorf("all bits set should read all Off, got %v", sw)
	}
	if err := b.Actuator.Set(2, true); err != nil {
		t.Fatal(err)
	}
	if !b.Sim.Levels()[2] {
		t.Error("LED 2 not driven")
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Options{Backend: "gpio-magic"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := Open(Options{Backend: BackendSerial, Profile: DefaultProfile()}); err == nil {
		t.Error("expected error for serial backend without port")
	}
}
