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

// busy returns BusyError when a read is in flight.
// Must be called with the mutex held.
func (d *Driver) busy() error {
	switch d.state {
	case StateAwaitingReady, StateClockingData, StateClockingConfig:
		return errors.Wrapf(BusyError, "state %s", d.state)
	}
	return nil
}

// PowerDown activates the power-down line. The chip loses its settings,
// so any pending configuration is dropped.
func (d *Driver) PowerDown() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.busy(); err != nil {
		return err
	}
	if d.state == StatePoweredDown {
		return nil
	}
	if err := d.lines.Clock.SetLow(); err != nil {
		return fault("clock", err)
	}
	if err := d.lines.PowerDown.SetLow(); err != nil {
		return fault("power-down", err)
	}
	d.state = StatePoweredDown
	d.pending = nil
	d.settle = false
	d.log.Debug().Msg("powered down")
	return nil
}

// PowerUp releases the power-down line and waits for the chip to wake.
// The configuration is reset to the variant default.
func (d *Driver) PowerUp() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.state != StatePoweredDown {
		return nil
	}
	if err := d.lines.PowerDown.SetHigh(); err != nil {
		return fault("power-down", err)
	}
	d.lines.Timer.Delay(d.timing.WakeDelay)
	d.powered()
	d.log.Debug().Object("configuration", d.active).Msg("powered up")
	return nil
}

// Reset pulses the power-down line to reset the chip's digital core.
// Works from any state except during a read; the chip is powered
// afterwards and uses the variant default configuration.
func (d *Driver) Reset() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.busy(); err != nil {
		return err
	}
	timer := d.lines.Timer
	t := d.timing
	if err := d.lines.Clock.SetLow(); err != nil {
		return fault("clock", err)
	}
	steps := []struct {
		level Level
		delay time.Duration
	}{
		{Low, t.ResetSettle},
		{High, t.ResetPulse},
		{Low, t.ResetPulse},
		{High, t.WakeDelay},
	}
	for _, step := range steps {
		if err := set(d.lines.PowerDown, step.level); err != nil {
			d.state = StatePoweredDown
			d.pending = nil
			return fault("power-down", err)
		}
		timer.Delay(step.delay)
	}
	d.powered()
	d.log.Debug().Msg("reset")
	return nil
}

// powered moves to Idle with the variant defaults.
// Must be called with the mutex held.
func (d *Driver) powered() {
	d.state = StateIdle
	d.active = d.variant.Default
	d.pending = nil
	d.settle = false
	d.bitIndex = 0
	d.pulseIndex = 0
}
