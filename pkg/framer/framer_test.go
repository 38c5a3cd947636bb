// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package framer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// consumeAll feeds input through f and returns the indexes at which
// FrameComplete was signalled
func consumeAll(t *testing.T, f *Framer, input string) []int {
	t.Helper()
	var completed []int
	for i := 0; i < len(input); i++ {
		sig, err := f.Consume(input[i])
		if err != nil {
			t.Fatalf("unexpected error at byte %d: %v", i, err)
		}
		if sig == FrameComplete {
			completed = append(completed, i)
		}
	}
	return completed
}

// ============================================================
// Frame Completion Tests
// ============================================================

func TestConsume_CompletesAtFinalBrace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "command", input: `{"ledcb3":true}`},
		{name: "empty object", input: `{}`},
		{name: "nested object", input: `{"dipSwitches":{"dip1":"On","dip2":"Off"}}`},
		{name: "escaped quote", input: `{"k":"a\"b"}`},
		{name: "escaped backslash", input: `{"k":"a\\"}`},
		{name: "escaped backslash before quote pair", input: `{"k":"a\\\"b"}`},
		{name: "escaped backslash then quote", input: `{"k":"a\\"b"}`},
		{name: "escaped braces inside string", input: `{"k":"\{\}"}`},
		{name: "leading whitespace", input: " \r\n{\"ledcb0\":false}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(DefaultCapacity)
			completed := consumeAll(t, f, tt.input)
			if len(completed) != 1 {
				t.Fatalf("FrameComplete signalled %d times, want 1", len(completed))
			}
			if completed[0] != len(tt.input)-1 {
				t.Errorf("FrameComplete at byte %d, want %d", completed[0], len(tt.input)-1)
			}
			if got, want := string(f.Frame()), strings.TrimSpace(tt.input); got != want {
				t.Errorf("Frame() = %q, want %q", got, want)
			}
		})
	}
}

func TestConsume_NeverCompletesWithoutClosingBrace(t *testing.T) {
	f := New(DefaultCapacity)
	completed := consumeAll(t, f, `{"ledcb3":true`)
	if len(completed) != 0 {
		t.Fatalf("FrameComplete signalled for unterminated input")
	}
	if f.State().Depth != 1 {
		t.Errorf("Depth = %d, want 1", f.State().Depth)
	}
}

func TestConsume_BackToBackFrames(t *testing.T) {
	f := New(DefaultCapacity)
	input := `{"ledcb1":true}{"ledcb2":false}`
	completed := consumeAll(t, f, input)
	if len(completed) != 2 {
		t.Fatalf("FrameComplete signalled %d times, want 2", len(completed))
	}
	if string(f.Frame()) != `{"ledcb2":false}` {
		t.Errorf("second frame = %q", f.Frame())
	}
}

// ============================================================
// Escape Handling Tests
// ============================================================

func TestConsume_BackslashOutsideStringIsInert(t *testing.T) {
	f := New(DefaultCapacity)
	f.Consume('{')
	before := f.State()
	sig, err := f.Consume('\\')
	if err != nil || sig != NeedMore {
		t.Fatalf("Consume('\\\\') = %v, %v; want NeedMore, nil", sig, err)
	}
	if f.State() != before {
		t.Errorf("state changed: %+v -> %+v", before, f.State())
	}
}

func TestConsume_EscapeIsOneShot(t *testing.T) {
	f := New(DefaultCapacity)
	for _, b := range []byte(`{"a\`) {
		f.Consume(b)
	}
	if !f.State().EscapeNext {
		t.Fatal("EscapeNext should be set after backslash in string")
	}
	f.Consume('n')
	if f.State().EscapeNext {
		t.Error("EscapeNext should clear after any byte")
	}
	if !f.State().InString {
		t.Error("escaped byte should not leave the string")
	}
}

func TestConsume_BackslashPairThenQuote(t *testing.T) {
	// The backslash pair cancels, so the next quote closes the string and
	// the trailing quote reopens one. Braces still count.
	input := `{"k":"a\\"b"}`
	f := New(DefaultCapacity)
	completed := consumeAll(t, f, input)
	if len(completed) != 1 || completed[0] != len(input)-1 {
		t.Fatalf("FrameComplete at %v, want [%d]", completed, len(input)-1)
	}
	if got := f.State(); got != (State{Depth: 0, InString: true}) {
		t.Errorf("State() = %+v, want depth 0 inside a string", got)
	}
}

func TestConsume_RawBraceInStringCounts(t *testing.T) {
	input := `{"k":"}"}`
	f := New(DefaultCapacity)
	completed := consumeAll(t, f, input)
	if len(completed) != 1 || completed[0] != 6 {
		t.Fatalf("FrameComplete at %v, want [6]", completed)
	}
	if got := string(f.Frame()); got != `{"k":"}` {
		t.Errorf("Frame() = %q", got)
	}
}

func TestConsume_ClosingBraceAtDepthZeroIgnored(t *testing.T) {
	f := New(DefaultCapacity)
	sig, err := f.Consume('}')
	if err != nil || sig != NeedMore {
		t.Fatalf("Consume('}') = %v, %v; want NeedMore, nil", sig, err)
	}
	if f.State().Depth != 0 {
		t.Errorf("Depth = %d, want 0", f.State().Depth)
	}
}

// ============================================================
// Overflow Tests
// ============================================================

func TestConsume_OverflowAtCapacity(t *testing.T) {
	const capacity = 16
	f := New(capacity)

	input := "{" + strings.Repeat("x", 64)
	var overflowAt = -1
	for i := 0; i < len(input); i++ {
		sig, err := f.Consume(input[i])
		if sig == FrameComplete {
			t.Fatalf("unexpected FrameComplete at byte %d", i)
		}
		if err != nil {
			if !errors.Is(err, ErrOverflow) {
				t.Fatalf("error = %v, want ErrOverflow", err)
			}
			overflowAt = i
			break
		}
	}

	if overflowAt != capacity {
		t.Errorf("overflow at byte %d, want %d", overflowAt, capacity)
	}
	if f.Len() != capacity {
		t.Errorf("Len() = %d, want %d", f.Len(), capacity)
	}
	if f.Statistics().Overflows != 1 {
		t.Errorf("Overflows = %d, want 1", f.Statistics().Overflows)
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	if New(0).Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", New(0).Capacity(), DefaultCapacity)
	}
}

// ============================================================
// Feed Tests
// ============================================================

func TestFeed_ResyncsAfterOverflow(t *testing.T) {
	f := New(16)

	var frames [][]byte
	var errs []error
	input := []byte(`{"junk":"` + strings.Repeat("x", 32) + `{"ledcb4":true}`)

	f.Feed(input,
		func(frame []byte) { frames = append(frames, bytes.Clone(frame)) },
		func(err error) { errs = append(errs, err) },
	)

	if len(errs) == 0 {
		t.Fatal("expected at least one overflow")
	}
	for _, err := range errs {
		if !errors.Is(err, ErrOverflow) {
			t.Errorf("error = %v, want ErrOverflow", err)
		}
	}
	if len(frames) != 1 || string(frames[0]) != `{"ledcb4":true}` {
		t.Errorf("frames = %q, want one ledcb4 frame", frames)
	}
}

func TestFeed_SplitAcrossChunks(t *testing.T) {
	f := New(DefaultCapacity)
	var frames []string
	onFrame := func(frame []byte) { frames = append(frames, string(frame)) }

	f.Feed([]byte(`{"led`), onFrame, nil)
	f.Feed([]byte(`cb7":`), onFrame, nil)
	if len(frames) != 0 {
		t.Fatal("frame completed early")
	}
	f.Feed([]byte(`true}`), onFrame, nil)

	if len(frames) != 1 || frames[0] != `{"ledcb7":true}` {
		t.Errorf("frames = %q", frames)
	}
	if f.Statistics().Frames != 1 {
		t.Errorf("Frames = %d, want 1", f.Statistics().Frames)
	}
}

func TestSignal_String(t *testing.T) {
	if NeedMore.String() != "NEED_MORE" || FrameComplete.String() != "FRAME_COMPLETE" {
		t.Error("unexpected signal names")
	}
	if Signal(9).String() != "Signal(9)" {
		t.Errorf("unknown signal = %q", Signal(9).String())
	}
}
