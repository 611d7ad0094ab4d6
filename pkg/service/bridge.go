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
	"time"

	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/config"
	"github.com/adom-inc/ads123x/pkg/environment"
	"github.com/adom-inc/ads123x/pkg/service/bridge"
)

// NewBridge creates the bridge of the given type. For the virtual
// bridge it also returns the simulated converter.
func NewBridge(bridgeType string, conf config.Config) (bridge.API, *bridge.Simulator, error) {
	switch bridgeType {
	case environment.BridgeRaspberryPi:
		b, err := bridge.NewRaspberryPiBridge()
		return b, nil, err
	case environment.BridgeOrangePi:
		b, err := bridge.NewOrangePIZeroBridge()
		return b, nil, err
	case environment.BridgeVirtual:
		v, err := conf.Variant()
		if err != nil {
			return nil, nil, err
		}
		sim := bridge.NewSimulator(bridge.SimulatorConfig{
			Variant: v,
			Period:  time.Duration(conf.Simulator.Period),
		})
		b, err := bridge.NewVirtualBridge(sim, bridge.VirtualPins{
			Clock:     conf.Pins.Clock,
			Data:      conf.Pins.Data,
			Ready:     conf.Pins.Ready,
			PowerDown: conf.Pins.PowerDown,
			Config:    conf.Pins.Config,
		})
		return b, sim, err
	}
	return nil, nil, errors.Errorf("unknown bridge type '%s'", bridgeType)
}
