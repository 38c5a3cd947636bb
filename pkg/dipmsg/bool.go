// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dipmsg

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BoolValue is the result of permissive boolean parsing
type BoolValue int

const (
	Unparseable BoolValue = iota
	True
	False
)

func (v BoolValue) String() string {
	switch v {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unparseable"
	}
}

// Bool collapses the value to a level. Unparseable reads as false, which is
// what the device firmware has always done.
func (v BoolValue) Bool() bool {
	return v == True
}

// ParseBool interprets a raw JSON value as a boolean.
// Accepts JSON booleans, numbers (non-zero is true) and the strings
// true/false, on/off, yes/no, 1/0 in any case.
func ParseBool(raw json.RawMessage) BoolValue {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Unparseable
	}

	switch raw[0] {
	case 'n':
		return Unparseable

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Unparseable
		}
		return fromBool(b)

	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Unparseable
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "on", "yes", "1":
			return True
		case "false", "off", "no", "0":
			return False
		}
		return Unparseable

	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Unparseable
		}
		return fromBool(n != 0)
	}
}

func fromBool(b bool) BoolValue {
	if b {
		return True
	}
	return False
}
