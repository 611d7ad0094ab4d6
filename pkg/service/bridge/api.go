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
	"time"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

// API of the bridge, the board whose GPIO pins are wired to the
// clock, data, power-down and config pins of the converter.
type API interface {
	// Turn Green status led on/off
	SetGreenLED(on bool) error
	// Turn Red status led on/off
	SetRedLED(on bool) error
	// Blink Green status led with given duration between on/off
	BlinkGreenLED(delay time.Duration) error
	// Blink Red status led with given duration between on/off
	BlinkRedLED(delay time.Duration) error

	// Input initializes a GPIO input pin with the given pin number.
	Input(pinNumber int, activeLow bool) (InputPin, error)
	// Output initializes a GPIO output pin with the given pin number
	// and initial logical value.
	Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error)
	// Interrupt initializes a GPIO input pin that reports edges.
	// Edge is one of "rising", "falling" or "both".
	Interrupt(pinNumber int, activeLow bool, edge string) (InterruptPin, error)

	// Timer returns the time source used for pulse timing.
	Timer() ads123x.Timer

	Close() error
}

// InputPin is the interface satisfied by GPIO input pins.
type InputPin interface {
	Read() (bool, error)
}

// OutputPin is the interface satisfied by GPIO output pins.
type OutputPin interface {
	Write(bool) error
}

// InterruptPin is the interface satisfied by GPIO pins that report edges.
type InterruptPin interface {
	InputPin
	// Wait until an edge occurs or the timeout elapses.
	Wait(timeout time.Duration) error
}
