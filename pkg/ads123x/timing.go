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
	"time"

	"github.com/pkg/errors"
)

// Timing holds the pulse and delay parameters of the serial interface.
// Zero fields are replaced by DefaultTiming values.
type Timing struct {
	// ClockHigh is the minimum high time of a clock pulse.
	ClockHigh time.Duration
	// SamplePoint is the time after the rising edge at which the data
	// line is sampled. Must not exceed ClockHigh.
	SamplePoint time.Duration
	// ClockLow is the minimum low time between clock pulses.
	ClockLow time.Duration
	// MaxHigh is the maximum high time of a clock pulse. Longer pulses
	// invalidate the conversion.
	MaxHigh time.Duration
	// WakeDelay is waited after releasing the power-down line.
	WakeDelay time.Duration
	// ChannelSettle is waited before the first ready check after a
	// channel change.
	ChannelSettle time.Duration
	// ResetSettle is the supply settle time at the start of a reset.
	ResetSettle time.Duration
	// ResetPulse is the width of each power-down pulse of a reset.
	ResetPulse time.Duration
	// PollInterval is used by the polling ready strategy.
	PollInterval time.Duration
}

// DefaultTiming follows the ADS1232/ADS1234 datasheet.
var DefaultTiming = Timing{
	ClockHigh:     100 * time.Nanosecond,
	SamplePoint:   50 * time.Nanosecond,
	ClockLow:      100 * time.Nanosecond,
	MaxHigh:       50 * time.Microsecond,
	WakeDelay:     time.Millisecond,
	ChannelSettle: 50 * time.Microsecond,
	ResetSettle:   50 * time.Microsecond,
	ResetPulse:    26 * time.Microsecond,
	PollInterval:  time.Millisecond,
}

// withDefaults returns a copy with all zero fields set to their defaults.
func (t Timing) withDefaults() Timing {
	def := func(v *time.Duration, d time.Duration) {
		if *v == 0 {
			*v = d
		}
	}
	def(&t.ClockHigh, DefaultTiming.ClockHigh)
	def(&t.SamplePoint, DefaultTiming.SamplePoint)
	def(&t.ClockLow, DefaultTiming.ClockLow)
	def(&t.MaxHigh, DefaultTiming.MaxHigh)
	def(&t.WakeDelay, DefaultTiming.WakeDelay)
	def(&t.ChannelSettle, DefaultTiming.ChannelSettle)
	def(&t.ResetSettle, DefaultTiming.ResetSettle)
	def(&t.ResetPulse, DefaultTiming.ResetPulse)
	def(&t.PollInterval, DefaultTiming.PollInterval)
	return t
}

// validate checks the relations between the timing parameters.
func (t Timing) validate() error {
	if t.SamplePoint > t.ClockHigh {
		return errors.Wrapf(InvalidConfigError, "sample point %s after end of clock high %s", t.SamplePoint, t.ClockHigh)
	}
	if t.MaxHigh < t.ClockHigh {
		return errors.Wrapf(InvalidConfigError, "maximum clock high %s below minimum %s", t.MaxHigh, t.ClockHigh)
	}
	return nil
}
