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

// Package ads123x drives ADS1232/ADS1234 style delta-sigma converters
// through bit-banged clock, data, ready and power-down lines.
//
// A conversion is read by waiting for the ready line, clocking out 24 data
// bits (MSB first) and clocking in 0-3 configuration bits that select the
// settings of the following conversion. The chip pipelines its settings:
// a configuration change takes effect one conversion after it is clocked.
package ads123x

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DataBits is the width of a conversion result.
const DataBits = 24

// State of the protocol engine.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingReady
	StateClockingData
	StateClockingConfig
	StatePoweredDown
	// StateStandby holds the clock high; the chip stops converting.
	StateStandby
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateClockingData:
		return "clocking-data"
	case StateClockingConfig:
		return "clocking-config"
	case StatePoweredDown:
		return "powered-down"
	case StateStandby:
		return "standby"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Option customizes a Driver.
type Option func(*Driver)

// WithTiming overrides the pulse timing. Zero fields keep their defaults.
func WithTiming(t Timing) Option {
	return func(d *Driver) { d.timing = t.withDefaults() }
}

// WithReadyWaiter selects the strategy used to wait for the ready line.
func WithReadyWaiter(w ReadyWaiter) Option {
	return func(d *Driver) { d.waiter = w }
}

// WithReadyLevel sets the level of the ready line that signals a completed
// conversion. Defaults to Low.
func WithReadyLevel(l Level) Option {
	return func(d *Driver) { d.readyLevel = l }
}

// WithLogger sets the logger used for debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// Result of an asynchronous read.
type Result struct {
	Value int32
	Err   error
}

// Driver is the protocol engine of one chip.
// Its methods are safe for concurrent use; at most one conversion is
// read at a time.
type Driver struct {
	lines      Lines
	variant    Variant
	timing     Timing
	waiter     ReadyWaiter
	readyLevel Level
	log        zerolog.Logger

	mutex      sync.Mutex
	state      State
	bitIndex   int
	pulseIndex int
	active     Configuration
	pending    *Configuration
	settle     bool
}

// New binds a driver to the given lines.
// The chip is assumed to start with the variant defaults; an initial
// configuration that differs is clocked in with the first conversion.
func New(lines Lines, initial Configuration, variant Variant, opts ...Option) (*Driver, error) {
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	if err := lines.validate(variant); err != nil {
		return nil, err
	}
	if err := variant.Check(initial); err != nil {
		return nil, err
	}
	d := &Driver{
		lines:      lines,
		variant:    variant,
		timing:     DefaultTiming,
		readyLevel: Low,
		log:        zerolog.Nop(),
		state:      StateIdle,
		active:     variant.Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.timing.validate(); err != nil {
		return nil, err
	}
	if d.waiter == nil {
		d.waiter = PollWaiter{Interval: d.timing.PollInterval}
	}
	if initial != d.active {
		d.pending = &initial
	}
	if err := lines.Clock.SetLow(); err != nil {
		return nil, fault("clock", err)
	}
	if lines.Config != nil {
		if err := lines.Config.SetLow(); err != nil {
			return nil, fault("config", err)
		}
	}
	if err := lines.PowerDown.SetHigh(); err != nil {
		return nil, fault("power-down", err)
	}
	return d, nil
}

// Variant returns the chip variant the driver is bound to.
func (d *Driver) Variant() Variant { return d.variant }

// State returns the current state of the protocol engine.
func (d *Driver) State() State {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.state
}

// BitIndex returns the index of the data bit being clocked.
// Only meaningful in StateClockingData.
func (d *Driver) BitIndex() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.bitIndex
}

// PulseIndex returns the index of the configuration pulse being clocked.
// Only meaningful in StateClockingConfig.
func (d *Driver) PulseIndex() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.pulseIndex
}

// Configuration returns the configuration the chip is currently using.
func (d *Driver) Configuration() Configuration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.active
}

// Pending returns the configuration that will be clocked in with the next
// conversion, if any.
func (d *Driver) Pending() (Configuration, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.pending == nil {
		return Configuration{}, false
	}
	return *d.pending, true
}

// Read waits for the next conversion and returns its sign extended value.
func (d *Driver) Read(ctx context.Context, timeout time.Duration) (int32, error) {
	exitStandby, err := d.begin()
	if err != nil {
		return 0, err
	}
	value, err := d.convert(ctx, timeout, exitStandby)
	d.finish(err)
	return value, err
}

// ReadAsync starts reading the next conversion and returns immediately.
// The result is delivered on the returned channel. Busy and power errors
// are delivered without starting a read.
func (d *Driver) ReadAsync(ctx context.Context, timeout time.Duration) <-chan Result {
	results := make(chan Result, 1)
	exitStandby, err := d.begin()
	if err != nil {
		results <- Result{Err: err}
		close(results)
		return results
	}
	go func() {
		defer close(results)
		value, err := d.convert(ctx, timeout, exitStandby)
		d.finish(err)
		results <- Result{Value: value, Err: err}
	}()
	return results
}

// begin claims the engine for a read.
func (d *Driver) begin() (exitStandby bool, err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	switch d.state {
	case StateIdle:
	case StateStandby:
		exitStandby = true
	case StatePoweredDown:
		return false, maskAny(NotPoweredError)
	default:
		return false, errors.Wrapf(BusyError, "state %s", d.state)
	}
	d.state = StateAwaitingReady
	return exitStandby, nil
}

// finish returns the engine to idle with the clock low.
func (d *Driver) finish(err error) {
	if err != nil {
		if lowErr := d.lines.Clock.SetLow(); lowErr != nil {
			d.log.Error().Err(lowErr).Msg("failed to force clock low")
		}
		if d.lines.Config != nil {
			if lowErr := d.lines.Config.SetLow(); lowErr != nil {
				d.log.Error().Err(lowErr).Msg("failed to force config low")
			}
		}
		d.log.Debug().Err(err).Msg("conversion read failed")
	}
	d.mutex.Lock()
	d.state = StateIdle
	d.mutex.Unlock()
}

// setState changes the state and resets the progress counters.
func (d *Driver) setState(s State) {
	d.mutex.Lock()
	d.state = s
	d.bitIndex = 0
	d.pulseIndex = 0
	d.mutex.Unlock()
}

// convert runs one conversion cycle. The caller owns the engine.
func (d *Driver) convert(ctx context.Context, timeout time.Duration, exitStandby bool) (int32, error) {
	timer := d.lines.Timer
	if exitStandby {
		// A falling clock ends standby; the first conversion is valid.
		if err := d.lines.Clock.SetLow(); err != nil {
			return 0, fault("clock", err)
		}
	}
	d.mutex.Lock()
	settle := d.settle
	d.settle = false
	d.mutex.Unlock()
	if settle {
		timer.Delay(d.timing.ChannelSettle)
	}

	if err := d.waiter.WaitReady(ctx, d.lines.Ready, d.readyLevel, timer, timeout); err != nil {
		return 0, err
	}

	d.setState(StateClockingData)
	var raw uint32
	for i := 0; i < DataBits; i++ {
		d.mutex.Lock()
		d.bitIndex = i
		d.mutex.Unlock()
		bit, err := d.pulse(nil)
		if err != nil {
			return 0, errors.Wrapf(err, "data bit %d", i)
		}
		raw <<= 1
		if bit == High {
			raw |= 1
		}
	}
	value := SignExtend24(raw)

	if err := d.clockConfig(); err != nil {
		return 0, err
	}
	return value, nil
}

// clockConfig clocks the pending (or current) configuration into the chip.
func (d *Driver) clockConfig() error {
	d.mutex.Lock()
	d.state = StateClockingConfig
	d.pulseIndex = 0
	cfg := d.active
	pending := d.pending
	if pending != nil {
		cfg = *pending
	}
	d.pending = nil
	d.mutex.Unlock()

	restore := func() {
		d.mutex.Lock()
		if d.pending == nil {
			d.pending = pending
		}
		d.mutex.Unlock()
	}

	bits, err := Encode(cfg, d.variant)
	if err != nil {
		restore()
		return err
	}
	for i, bit := range bits {
		d.mutex.Lock()
		d.pulseIndex = i
		d.mutex.Unlock()
		if _, err := d.pulse(&bit); err != nil {
			restore()
			return errors.Wrapf(err, "config pulse %d", i)
		}
	}
	if len(bits) > 0 {
		if err := d.lines.Config.SetLow(); err != nil {
			restore()
			return fault("config", err)
		}
	}

	d.mutex.Lock()
	if cfg.Channel != d.active.Channel {
		d.settle = true
	}
	d.active = cfg
	d.mutex.Unlock()
	if pending != nil {
		d.log.Debug().Object("configuration", cfg).Msg("configuration clocked in")
	}
	return nil
}

// pulse emits one clock pulse. When drive is nil the data line is sampled
// at the sample point, otherwise the config line is driven to *drive
// before the rising edge.
func (d *Driver) pulse(drive *Level) (Level, error) {
	timer := d.lines.Timer
	t := d.timing
	if drive != nil {
		if err := set(d.lines.Config, *drive); err != nil {
			return Low, fault("config", err)
		}
	}
	start := timer.Now()
	if err := d.lines.Clock.SetHigh(); err != nil {
		return Low, fault("clock", err)
	}
	timer.Delay(t.SamplePoint)
	level := Low
	if drive == nil {
		l, err := d.lines.Data.ReadLevel()
		if err != nil {
			return Low, fault("data", err)
		}
		level = l
	}
	if rest := t.ClockHigh - t.SamplePoint; rest > 0 {
		timer.Delay(rest)
	}
	if err := d.lines.Clock.SetLow(); err != nil {
		return Low, fault("clock", err)
	}
	if high := timer.Now() - start; high > t.MaxHigh {
		return Low, errors.Wrapf(TimingViolationError, "clock high for %s (max %s)", high, t.MaxHigh)
	}
	timer.Delay(t.ClockLow)
	return level, nil
}

// SignExtend24 converts a 24-bit two's complement value to int32.
// Bits above bit 23 are ignored.
func SignExtend24(raw uint32) int32 {
	return int32(raw<<8) >> 8
}

// SetGain queues a gain change for the next configuration pulses.
func (d *Driver) SetGain(g Gain) error {
	return d.set(func(c *Configuration) { c.Gain = g })
}

// SetSpeed queues a data rate change for the next configuration pulses.
func (d *Driver) SetSpeed(s Speed) error {
	return d.set(func(c *Configuration) { c.Speed = s })
}

// SetChannel queues an input change for the next configuration pulses.
// Returns InvalidConfigError on variants without channel selection.
func (d *Driver) SetChannel(ch Channel) error {
	return d.set(func(c *Configuration) { c.Channel = ch })
}

// SetConfiguration queues a complete configuration.
func (d *Driver) SetConfiguration(cfg Configuration) error {
	return d.set(func(c *Configuration) { *c = cfg })
}

func (d *Driver) set(modify func(*Configuration)) error {
	_, err := d.Update(func(c *Configuration) error {
		modify(c)
		return nil
	})
	return err
}

// Update applies modify to the pending (or active) configuration and
// queues the result. modify runs with the driver locked, so concurrent
// updates do not overwrite each other.
// Changes made during a read are picked up when the configuration pulses
// of that read start, or by the next read when they already started.
func (d *Driver) Update(modify func(*Configuration) error) (Configuration, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.state == StatePoweredDown {
		return Configuration{}, maskAny(NotPoweredError)
	}
	next := d.active
	if d.pending != nil {
		next = *d.pending
	}
	if err := modify(&next); err != nil {
		return Configuration{}, err
	}
	if err := d.variant.Check(next); err != nil {
		return Configuration{}, err
	}
	if next == d.active && d.state != StateClockingConfig {
		d.pending = nil
	} else {
		d.pending = &next
	}
	return next, nil
}

// Standby waits for the current conversion to complete and then holds the
// clock high, which stops the chip from converting. The next Read releases
// the clock and returns the first conversion after standby.
func (d *Driver) Standby(ctx context.Context, timeout time.Duration) error {
	d.mutex.Lock()
	switch d.state {
	case StateStandby:
		d.mutex.Unlock()
		return nil
	case StatePoweredDown:
		d.mutex.Unlock()
		return maskAny(NotPoweredError)
	case StateIdle:
		d.state = StateAwaitingReady
		d.mutex.Unlock()
	default:
		state := d.state
		d.mutex.Unlock()
		return errors.Wrapf(BusyError, "state %s", state)
	}

	if err := d.waiter.WaitReady(ctx, d.lines.Ready, d.readyLevel, d.lines.Timer, timeout); err != nil {
		d.finish(err)
		return err
	}
	if err := d.lines.Clock.SetHigh(); err != nil {
		err = fault("clock", err)
		d.finish(err)
		return err
	}
	d.setState(StateStandby)
	d.log.Debug().Msg("entered standby")
	return nil
}
