// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

// Profile describes how logical switches and LEDs map onto a board.
// Only the fields used by the selected backend matter.
type Profile struct {
	Name string `yaml:"name"`

	// periph backend: pin names
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`

	// cdev backend: chip and line offsets
	Chip          string `yaml:"chip"`
	InputOffsets  []int  `yaml:"input_offsets"`
	OutputOffsets []int  `yaml:"output_offsets"`

	ActiveLow bool       `yaml:"active_low"`
	ADC       ADCProfile `yaml:"adc"`
}

// ADCProfile configures the analog switch variant
type ADCProfile struct {
	Bus       string   `yaml:"bus"`
	Addresses []uint16 `yaml:"addresses"`
	Channels  []int    `yaml:"channels"`
	Threshold int32    `yaml:"threshold"`
}

// DefaultProfile targets a Raspberry Pi header (BCM numbering) with two
// ADS1115 converters for the analog variant.
func DefaultProfile() Profile {
	return Profile{
		Name:          "rpi",
		Inputs:        []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19", "GPIO26", "GPIO16", "GPIO20", "GPIO21"},
		Outputs:       []string{"GPIO4", "GPIO17", "GPIO27", "GPIO22", "GPIO23", "GPIO24", "GPIO25", "GPIO12"},
		Chip:          "gpiochip0",
		InputOffsets:  []int{5, 6, 13, 19, 26, 16, 20, 21},
		OutputOffsets: []int{4, 17, 27, 22, 23, 24, 25, 12},
		ADC: ADCProfile{
			Addresses: []uint16{0x48, 0x49},
			Channels:  append([]int(nil), DefaultADCChannels[:]...),
			Threshold: DefaultADCThreshold,
		},
	}
}

// ADCChannels returns the channel map as a fixed-size array
func (p Profile) ADCChannels() [dipmsg.NumSwitches]int {
	var ch [dipmsg.NumSwitches]int
	copy(ch[:], p.ADC.Channels)
	return ch
}

const profileSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "inputs": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 8, "maxItems": 8},
    "outputs": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 8, "maxItems": 8},
    "chip": {"type": "string", "minLength": 1},
    "input_offsets": {"type": "array", "items": {"type": "integer", "minimum": 0}, "minItems": 8, "maxItems": 8},
    "output_offsets": {"type": "array", "items": {"type": "integer", "minimum": 0}, "minItems": 8, "maxItems": 8},
    "active_low": {"type": "boolean"},
    "adc": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "bus": {"type": "string"},
        "addresses": {"type": "array", "items": {"type": "integer", "minimum": 8, "maximum": 119}, "minItems": 1},
        "channels": {"type": "array", "items": {"type": "integer", "minimum": 0}, "minItems": 8, "maxItems": 8},
        "threshold": {"type": "integer"}
      }
    }
  }
}`

// LoadProfile reads a YAML board profile. Fields not present keep their
// DefaultProfile values.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("unable to read board profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile validates and decodes a YAML board profile
func ParseProfile(data []byte) (Profile, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("invalid board profile: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	if err := validateProfile(doc); err != nil {
		return Profile{}, err
	}

	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("invalid board profile: %w", err)
	}
	return p, nil
}

func validateProfile(doc map[string]interface{}) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("board profile is not representable as JSON: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(profileSchema)
	documentLoader := gojsonschema.NewBytesLoader(docBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate board profile: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, fmt.Sprintf("  - %s", desc))
		}
		return fmt.Errorf("invalid board profile:\n%s", strings.Join(details, "\n"))
	}
	return nil
}
