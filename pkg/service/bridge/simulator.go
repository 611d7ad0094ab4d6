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

package bridge

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

// Waveform produces the analog value seen by a simulated converter.
type Waveform func(t time.Duration, cfg ads123x.Configuration) int32

// SimulatorConfig configures a simulated converter.
type SimulatorConfig struct {
	// Variant of the simulated chip. Defaults to ADS1232.
	Variant ads123x.Variant
	// Waveform of the input. Defaults to SineWaveform.
	Waveform Waveform
	// Period overrides the conversion period derived from the speed.
	Period time.Duration
	// Now overrides the time source.
	Now func() time.Time
}

// Simulator behaves like an ADS123x chip on the other side of the
// virtual bridge pins. It shifts out a conversion on the rising clock
// edges, reads the configuration pulses that follow and honours the
// power-down pin.
type Simulator struct {
	mutex    sync.Mutex
	variant  ads123x.Variant
	waveform Waveform
	period   time.Duration
	now      func() time.Time
	start    time.Time

	powered     bool
	clock       bool
	configLevel bool
	active      ads123x.Configuration
	convStart   time.Time
	reading     bool
	bitIndex    int
	sample      uint32
	dout        bool
	configBits  []ads123x.Level
	conversions int
}

// NewSimulator creates a powered simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Variant.Name == "" {
		cfg.Variant = ads123x.ADS1232
	}
	if cfg.Waveform == nil {
		cfg.Waveform = SineWaveform
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Simulator{
		variant:  cfg.Variant,
		waveform: cfg.Waveform,
		period:   cfg.Period,
		now:      cfg.Now,
		powered:  true,
		active:   cfg.Variant.Default,
	}
	s.start = s.now()
	s.convStart = s.start
	return s
}

// SineWaveform is a 1Hz sine whose amplitude follows the gain and whose
// offset follows the selected input.
func SineWaveform(t time.Duration, cfg ads123x.Configuration) int32 {
	amplitude := float64(1<<21) * float64(cfg.Gain.Multiplier()) / 128
	offset := 0.0
	if cfg.Channel > ads123x.AIN1 {
		offset = float64(cfg.Channel-ads123x.AIN1) * 250000
	}
	v := amplitude*math.Sin(2*math.Pi*t.Seconds()) + offset
	return int32(math.Max(-(1 << 23), math.Min(1<<23-1, v)))
}

// Configuration returns the configuration the simulated chip is using.
func (s *Simulator) Configuration() ads123x.Configuration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// Powered returns true unless the power-down pin is active.
func (s *Simulator) Powered() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.powered
}

// Conversions returns the number of conversions read so far.
func (s *Simulator) Conversions() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.conversions
}

// conversionPeriod must be called with the lock held.
func (s *Simulator) conversionPeriod() time.Duration {
	if s.period > 0 {
		return s.period
	}
	return time.Second / time.Duration(s.active.Speed.SamplesPerSecond())
}

// readyAt must be called with the lock held.
func (s *Simulator) readyAt() time.Time {
	return s.convStart.Add(s.conversionPeriod())
}

// isReady must be called with the lock held.
func (s *Simulator) isReady() bool {
	return s.powered && !s.reading && !s.clock && !s.now().Before(s.readyAt())
}

// dataLevel returns the level of the DOUT/DRDY pin.
func (s *Simulator) dataLevel() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch {
	case !s.powered:
		return true
	case s.reading:
		return s.dout
	default:
		return !s.isReady()
	}
}

func (s *Simulator) setClock(high bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if high == s.clock {
		return
	}
	if !s.powered {
		s.clock = high
		return
	}
	if high {
		s.risingEdge()
	} else {
		s.clock = false
		s.fallingEdge()
	}
}

// risingEdge must be called with the lock held.
func (s *Simulator) risingEdge() {
	if !s.reading {
		ready := !s.now().Before(s.readyAt())
		s.clock = true
		if !ready {
			// Clock held high while converting: standby.
			return
		}
		s.reading = true
		s.bitIndex = 0
		s.configBits = s.configBits[:0]
		s.sample = uint32(s.waveform(s.now().Sub(s.start), s.active)) & 0xFFFFFF
	} else {
		s.clock = true
	}
	if s.bitIndex < ads123x.DataBits {
		s.dout = s.sample&(1<<uint(ads123x.DataBits-1-s.bitIndex)) != 0
	} else {
		s.dout = true
		s.configBits = append(s.configBits, ads123x.Level(s.configLevel))
	}
	s.bitIndex++
}

// fallingEdge must be called with the lock held.
func (s *Simulator) fallingEdge() {
	if !s.reading {
		// Leaving standby restarts the conversion.
		if s.now().Before(s.readyAt()) {
			return
		}
		s.convStart = s.now()
		return
	}
	if s.bitIndex < ads123x.DataBits+s.variant.PulseCount() {
		return
	}
	s.reading = false
	s.conversions++
	s.convStart = s.now()
	if cfg, found := s.decode(s.configBits); found {
		s.active = cfg
	}
}

// decode finds the configuration encoded by the given bits.
func (s *Simulator) decode(bits []ads123x.Level) (ads123x.Configuration, bool) {
	if len(bits) == 0 {
		return s.active, false
	}
	for _, g := range s.variant.Gains {
		for _, sp := range s.variant.Speeds {
			for _, ch := range s.variant.Channels {
				cfg := ads123x.Configuration{Gain: g, Speed: sp, Channel: ch}
				if encoded, err := ads123x.Encode(cfg, s.variant); err == nil && slices.Equal(encoded, bits) {
					return cfg, true
				}
			}
		}
	}
	return s.active, false
}

func (s *Simulator) setPowerDown(released bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if released == s.powered {
		return
	}
	s.powered = released
	s.reading = false
	s.active = s.variant.Default
	s.convStart = s.now()
}

func (s *Simulator) setConfig(high bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.configLevel = high
}

// waitReady waits until the data pin goes low.
func (s *Simulator) waitReady(timeout time.Duration) error {
	s.mutex.Lock()
	var until time.Duration
	if !s.powered {
		until = -1
	} else if !s.reading {
		until = s.readyAt().Sub(s.now())
	}
	s.mutex.Unlock()
	if until < 0 || until > timeout {
		time.Sleep(timeout)
		return errors.Errorf("no edge within %s", timeout)
	}
	time.Sleep(until)
	return nil
}

// ClockPin returns the SCLK input of the simulated chip.
func (s *Simulator) ClockPin() OutputPin { return simOutput(s.setClock) }

// PowerDownPin returns the PWDN input of the simulated chip.
func (s *Simulator) PowerDownPin() OutputPin { return simOutput(s.setPowerDown) }

// ConfigPin returns the pin sampled during the configuration pulses.
func (s *Simulator) ConfigPin() OutputPin { return simOutput(s.setConfig) }

// DataPin returns the DOUT/DRDY output of the simulated chip.
func (s *Simulator) DataPin() InterruptPin { return simData{s} }

type simOutput func(bool)

func (o simOutput) Write(value bool) error {
	o(value)
	return nil
}

type simData struct {
	s *Simulator
}

func (d simData) Read() (bool, error) { return d.s.dataLevel(), nil }

func (d simData) Wait(timeout time.Duration) error { return d.s.waitReady(timeout) }
