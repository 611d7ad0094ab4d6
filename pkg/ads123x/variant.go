// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package ads123x

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// MaxConfigPulses is the maximum number of configuration pulses that
// can follow the data pulses of a conversion.
const MaxConfigPulses = 3

// Field identifies a configuration field in a pulse layout.
type Field uint8

const (
	FieldGain Field = iota
	FieldSpeed
	FieldChannel
)

func (f Field) String() string {
	switch f {
	case FieldGain:
		return "gain"
	case FieldSpeed:
		return "speed"
	case FieldChannel:
		return "channel"
	}
	return "unknown"
}

// FieldEncoding describes how one configuration field is clocked out.
// Patterns maps a field value (Gain, Speed or Channel as uint8) to its bits,
// MSB first. Every pattern must have exactly Width bits.
type FieldEncoding struct {
	Field    Field
	Width    int
	Patterns map[uint8][]Level
}

// Variant describes the capabilities of one chip family.
type Variant struct {
	Name     string
	Gains    []Gain
	Speeds   []Speed
	Channels []Channel
	// Default is the configuration the chip uses after power up.
	Default Configuration
	// Layout lists the fields in the order they are clocked out.
	Layout []FieldEncoding
}

var (
	// ADS1232 has no input selection through the configuration pulses.
	// Pulses: gain (2 bits) then speed (1 bit).
	ADS1232 = Variant{
		Name:     "ADS1232",
		Gains:    []Gain{Gain1, Gain2, Gain64, Gain128},
		Speeds:   []Speed{SpeedSlow, SpeedFast},
		Channels: []Channel{ChannelNone},
		Default:  Configuration{Gain: Gain128, Speed: SpeedSlow, Channel: ChannelNone},
		Layout: []FieldEncoding{
			{Field: FieldGain, Width: 2, Patterns: map[uint8][]Level{
				uint8(Gain1):   {Low, Low},
				uint8(Gain2):   {Low, High},
				uint8(Gain64):  {High, Low},
				uint8(Gain128): {High, High},
			}},
			speedEncoding,
		},
	}
	// ADS1234 has a fixed gain of 128 and four inputs.
	// Pulses: channel (2 bits) then speed (1 bit).
	ADS1234 = Variant{
		Name:     "ADS1234",
		Gains:    []Gain{Gain128},
		Speeds:   []Speed{SpeedSlow, SpeedFast},
		Channels: []Channel{AIN1, AIN2, AIN3, AIN4},
		Default:  Configuration{Gain: Gain128, Speed: SpeedSlow, Channel: AIN1},
		Layout: []FieldEncoding{
			{Field: FieldChannel, Width: 2, Patterns: map[uint8][]Level{
				uint8(AIN1): {Low, Low},
				uint8(AIN2): {Low, High},
				uint8(AIN3): {High, Low},
				uint8(AIN4): {High, High},
			}},
			speedEncoding,
		},
	}

	speedEncoding = FieldEncoding{Field: FieldSpeed, Width: 1, Patterns: map[uint8][]Level{
		uint8(SpeedSlow): {Low},
		uint8(SpeedFast): {High},
	}}
)

// VariantByName returns the built-in variant with the given name.
func VariantByName(name string) (Variant, error) {
	for _, v := range []Variant{ADS1232, ADS1234} {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}
	return Variant{}, errors.Wrapf(InvalidConfigError, "unknown variant '%s'", name)
}

// PulseCount returns the number of configuration pulses per conversion.
func (v Variant) PulseCount() int {
	n := 0
	for _, f := range v.Layout {
		n += f.Width
	}
	return n
}

// HasChannelSelection returns true when the variant can switch inputs.
func (v Variant) HasChannelSelection() bool {
	for _, c := range v.Channels {
		if c != ChannelNone {
			return true
		}
	}
	return false
}

// Validate checks the consistency of the variant description.
func (v Variant) Validate() error {
	if v.Name == "" {
		return errors.Wrap(InvalidConfigError, "variant has no name")
	}
	if n := v.PulseCount(); n > MaxConfigPulses {
		return errors.Wrapf(InvalidConfigError, "variant %s clocks %d configuration pulses (max %d)", v.Name, n, MaxConfigPulses)
	}
	for _, f := range v.Layout {
		for value, bits := range f.Patterns {
			if len(bits) != f.Width {
				return errors.Wrapf(InvalidConfigError, "variant %s: %s pattern for %d has %d bits, want %d", v.Name, f.Field, value, len(bits), f.Width)
			}
		}
	}
	if err := v.Check(v.Default); err != nil {
		return errors.Wrapf(err, "variant %s default", v.Name)
	}
	return nil
}

// Check returns InvalidConfigError when the configuration uses a field
// value the variant does not support.
func (v Variant) Check(c Configuration) error {
	if !slices.Contains(v.Gains, c.Gain) {
		return errors.Wrapf(InvalidConfigError, "%s does not support gain %s", v.Name, c.Gain)
	}
	if !slices.Contains(v.Speeds, c.Speed) {
		return errors.Wrapf(InvalidConfigError, "%s does not support speed %s", v.Name, c.Speed)
	}
	if !slices.Contains(v.Channels, c.Channel) {
		if c.Channel != ChannelNone && !v.HasChannelSelection() {
			return errors.Wrapf(InvalidConfigError, "%s has no channel selection", v.Name)
		}
		return errors.Wrapf(InvalidConfigError, "%s does not support channel %s", v.Name, c.Channel)
	}
	for _, f := range v.Layout {
		if _, found := f.Patterns[fieldValue(c, f.Field)]; !found {
			return errors.Wrapf(InvalidConfigError, "%s has no %s pattern for %s", v.Name, f.Field, c)
		}
	}
	return nil
}

// Encode returns the configuration bits, in clock order, for the given
// configuration on the given variant.
func Encode(c Configuration, v Variant) ([]Level, error) {
	if err := v.Check(c); err != nil {
		return nil, err
	}
	bits := make([]Level, 0, v.PulseCount())
	for _, f := range v.Layout {
		bits = append(bits, f.Patterns[fieldValue(c, f.Field)]...)
	}
	return bits, nil
}

func fieldValue(c Configuration, f Field) uint8 {
	switch f {
	case FieldGain:
		return uint8(c.Gain)
	case FieldSpeed:
		return uint8(c.Speed)
	default:
		return uint8(c.Channel)
	}
}
