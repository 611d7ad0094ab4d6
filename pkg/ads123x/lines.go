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
	"context"
	"time"

	"github.com/pkg/errors"
)

// Level of a digital line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// String returns "high" or "low".
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Edge selects the transition an EdgeWaiter waits for.
type Edge uint8

const (
	EdgeFalling Edge = iota
	EdgeRising
)

// String returns the name of the edge.
func (e Edge) String() string {
	if e == EdgeRising {
		return "rising"
	}
	return "falling"
}

// edgeTo returns the edge that results in the given level.
func edgeTo(l Level) Edge {
	if l == High {
		return EdgeRising
	}
	return EdgeFalling
}

// OutputLine is a digital line driven by the host.
type OutputLine interface {
	SetHigh() error
	SetLow() error
}

// InputLine is a digital line sampled by the host.
type InputLine interface {
	ReadLevel() (Level, error)
}

// EdgeWaiter suspends the calling goroutine until an edge occurs on a line.
// It must return TimeoutError when the timeout elapses first.
type EdgeWaiter interface {
	WaitForEdge(ctx context.Context, edge Edge, timeout time.Duration) error
}

// Timer provides a monotonic time source and busy/blocking delays.
type Timer interface {
	// Now returns a monotonic timestamp.
	Now() time.Duration
	// Delay waits for at least the given duration.
	Delay(d time.Duration)
}

// Lines binds a driver to the physical lines of one chip.
type Lines struct {
	// Clock (SCLK), driven by the host.
	Clock OutputLine
	// Data (DOUT), sampled during the data pulses.
	Data InputLine
	// Ready (DRDY). On ADS123x parts this is the same pin as Data.
	Ready InputLine
	// PowerDown (PWDN), active low.
	PowerDown OutputLine
	// Config is driven by the host during the configuration pulses.
	// Only required when the variant clocks configuration bits.
	Config OutputLine
	// Timer used for pulse timing, timeouts and wake delays.
	Timer Timer
}

// validate checks that all required lines are present.
func (l Lines) validate(v Variant) error {
	switch {
	case l.Clock == nil:
		return errors.Wrap(InvalidConfigError, "clock line missing")
	case l.Data == nil:
		return errors.Wrap(InvalidConfigError, "data line missing")
	case l.Ready == nil:
		return errors.Wrap(InvalidConfigError, "ready line missing")
	case l.PowerDown == nil:
		return errors.Wrap(InvalidConfigError, "power-down line missing")
	case l.Timer == nil:
		return errors.Wrap(InvalidConfigError, "timer missing")
	case l.Config == nil && v.PulseCount() > 0:
		return errors.Wrapf(InvalidConfigError, "config line missing for variant %s", v.Name)
	}
	return nil
}

// set drives an output line to the given level.
func set(line OutputLine, l Level) error {
	if l == High {
		return line.SetHigh()
	}
	return line.SetLow()
}
