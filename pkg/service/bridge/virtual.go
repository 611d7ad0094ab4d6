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
	"fmt"
	"sync"
	"time"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

// VirtualPins maps pin numbers of the virtual bridge onto the
// simulated chip.
type VirtualPins struct {
	Clock     int
	Data      int
	Ready     int
	PowerDown int
	Config    int
}

type virtualBridge struct {
	mutex    sync.Mutex
	sim      *Simulator
	pins     VirtualPins
	timer    *HostTimer
	greenLed bool
	redLed   bool
}

// NewVirtualBridge implements a bridge without hardware, wired to the
// given simulated chip.
func NewVirtualBridge(sim *Simulator, pins VirtualPins) (API, error) {
	return &virtualBridge{
		sim:   sim,
		pins:  pins,
		timer: NewHostTimer(),
	}, nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *virtualBridge) Input(pinNumber int, activeLow bool) (InputPin, error) {
	if pinNumber != p.pins.Data && pinNumber != p.pins.Ready {
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	return invertInterrupt(p.sim.DataPin(), activeLow), nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *virtualBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	var pin OutputPin
	switch pinNumber {
	case p.pins.Clock:
		pin = p.sim.ClockPin()
	case p.pins.PowerDown:
		pin = p.sim.PowerDownPin()
	case p.pins.Config:
		pin = p.sim.ConfigPin()
	default:
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	pin = invertOutput(pin, activeLow)
	if err := pin.Write(initialValue); err != nil {
		return nil, err
	}
	return pin, nil
}

// Interrupt initializes a GPIO input pin that reports edges.
func (p *virtualBridge) Interrupt(pinNumber int, activeLow bool, edge string) (InterruptPin, error) {
	if pinNumber != p.pins.Data && pinNumber != p.pins.Ready {
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	return invertInterrupt(p.sim.DataPin(), activeLow), nil
}

// Timer returns the time source used for pulse timing.
func (p *virtualBridge) Timer() ads123x.Timer {
	return p.timer
}

// Turn Green status led on/off
func (p *virtualBridge) SetGreenLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.greenLed = on
	return nil
}

// Turn Red status led on/off
func (p *virtualBridge) SetRedLED(on bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.redLed = on
	return nil
}

// Blink Green status led with given duration between on/off
func (p *virtualBridge) BlinkGreenLED(delay time.Duration) error {
	return p.SetGreenLED(true)
}

// Blink Red status led with given duration between on/off
func (p *virtualBridge) BlinkRedLED(delay time.Duration) error {
	return p.SetRedLED(true)
}

func (p *virtualBridge) Close() error {
	return nil
}

type invertedOutput struct {
	OutputPin
}

func (o invertedOutput) Write(value bool) error { return o.OutputPin.Write(!value) }

func invertOutput(pin OutputPin, activeLow bool) OutputPin {
	if activeLow {
		return invertedOutput{pin}
	}
	return pin
}

type invertedInterrupt struct {
	InterruptPin
}

func (i invertedInterrupt) Read() (bool, error) {
	value, err := i.InterruptPin.Read()
	return !value, err
}

func invertInterrupt(pin InterruptPin, activeLow bool) InterruptPin {
	if activeLow {
		return invertedInterrupt{pin}
	}
	return pin
}
