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
	"context"
	"sync"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

const (
	rpiGreenLedPin = 23
	rpiRedLedPin   = 24
	opzGreenLedPin = 19
	opzRedLedPin   = 18
)

type statusLed struct {
	sync.Mutex
	pin         gpio.OutputPin
	cancelBlink func()
}

// Turn led on/off, cancel blink
func (l *statusLed) Set(on bool) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if err := l.pin.Write(on); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

// Blink led on/off
func (l *statusLed) Blink(delay time.Duration) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelBlink = cancel
	go func() {
		value := true
		for {
			l.Mutex.Lock()
			if ctx.Err() == nil {
				l.pin.Write(value)
				value = !value
			}
			l.Mutex.Unlock()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// stopBlink cancels a running blink. Must be called with the lock held.
func (l *statusLed) stopBlink() {
	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
}

// gpioBridge uses the sysfs GPIO interface of the board.
type gpioBridge struct {
	name     string
	greenLed statusLed
	redLed   statusLed
	timer    *HostTimer
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's
func NewRaspberryPiBridge() (API, error) {
	return newGPIOBridge("rpi", rpiGreenLedPin, rpiRedLedPin)
}

// NewOrangePIZeroBridge implements the bridge for an Orange PI Zero
func NewOrangePIZeroBridge() (API, error) {
	return newGPIOBridge("opz", opzGreenLedPin, opzRedLedPin)
}

func newGPIOBridge(name string, greenLedPin, redLedPin int) (API, error) {
	activeLow := true
	initialValue := false
	greenLed, err := gpio.Output(greenLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redLed, err := gpio.Output(redLedPin, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[redLed] failed")
	}
	return &gpioBridge{
		name:     name,
		greenLed: statusLed{pin: greenLed},
		redLed:   statusLed{pin: redLed},
		timer:    NewHostTimer(),
	}, nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *gpioBridge) Input(pinNumber int, activeLow bool) (InputPin, error) {
	pin, err := gpio.Input(pinNumber, activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: Input[%d] failed", p.name, pinNumber)
	}
	return pin, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *gpioBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	pin, err := gpio.Output(pinNumber, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: Output[%d] failed", p.name, pinNumber)
	}
	return pin, nil
}

// Interrupt initializes a GPIO input pin that reports edges.
func (p *gpioBridge) Interrupt(pinNumber int, activeLow bool, edge string) (InterruptPin, error) {
	pin, err := gpio.Interrupt(pinNumber, activeLow, edge)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: Interrupt[%d] failed", p.name, pinNumber)
	}
	return pin, nil
}

// Timer returns the time source used for pulse timing.
func (p *gpioBridge) Timer() ads123x.Timer {
	return p.timer
}

// Turn Green status led on/off
func (p *gpioBridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *gpioBridge) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *gpioBridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *gpioBridge) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

// Close turns off the status leds.
func (p *gpioBridge) Close() error {
	if err := p.greenLed.Set(false); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	if err := p.redLed.Set(false); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}
