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

package service

import (
	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/config"
	"github.com/adom-inc/ads123x/pkg/service/bridge"
)

// OpenLines opens the converter lines on the bridge and returns them
// with the ready strategy selected in the configuration.
func OpenLines(b bridge.API, conf config.Config, v ads123x.Variant) (ads123x.Lines, ads123x.ReadyWaiter, error) {
	pins := conf.Pins
	activeLow := pins.ActiveLow
	readyLevel, err := conf.ReadyLevel()
	if err != nil {
		return ads123x.Lines{}, nil, err
	}

	clock, err := b.Output(pins.Clock, activeLow, false)
	if err != nil {
		return ads123x.Lines{}, nil, errors.Wrap(err, "clock")
	}
	powerDown, err := b.Output(pins.PowerDown, activeLow, true)
	if err != nil {
		return ads123x.Lines{}, nil, errors.Wrap(err, "power-down")
	}
	lines := ads123x.Lines{
		Clock:     bridge.NewOutputLine("clock", clock),
		PowerDown: bridge.NewOutputLine("power-down", powerDown),
		Timer:     b.Timer(),
	}
	if v.PulseCount() > 0 {
		cfgPin, err := b.Output(pins.Config, activeLow, false)
		if err != nil {
			return ads123x.Lines{}, nil, errors.Wrap(err, "config")
		}
		lines.Config = bridge.NewOutputLine("config", cfgPin)
	}

	var waiter ads123x.ReadyWaiter
	var ready bridge.InputPin
	if conf.Chip.ReadyStrategy == "edge" {
		edge := ads123x.EdgeFalling
		if readyLevel == ads123x.High {
			edge = ads123x.EdgeRising
		}
		pin, err := b.Interrupt(pins.Ready, activeLow, edge.String())
		if err != nil {
			return ads123x.Lines{}, nil, errors.Wrap(err, "ready")
		}
		ready = pin
		waiter = ads123x.NewEdgeReadyWaiter(bridge.NewEdgeWaiter("ready", pin, edge))
	} else {
		pin, err := b.Input(pins.Ready, activeLow)
		if err != nil {
			return ads123x.Lines{}, nil, errors.Wrap(err, "ready")
		}
		ready = pin
		waiter = ads123x.PollWaiter{Interval: conf.DriverTiming().PollInterval}
	}
	lines.Ready = bridge.NewInputLine("ready", ready)
	if pins.Data == pins.Ready {
		// DOUT doubles as DRDY.
		lines.Data = bridge.NewInputLine("data", ready)
	} else {
		data, err := b.Input(pins.Data, activeLow)
		if err != nil {
			return ads123x.Lines{}, nil, errors.Wrap(err, "data")
		}
		lines.Data = bridge.NewInputLine("data", data)
	}
	return lines, waiter, nil
}
