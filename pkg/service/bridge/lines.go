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
	"time"

	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

const (
	// Longest single wait on an interrupt pin, so a canceled context is
	// noticed in time.
	maxEdgeWaitSlice = 100 * time.Millisecond
)

type outputLine struct {
	name string
	pin  OutputPin
}

// NewOutputLine turns a bridge output pin into a driver line.
func NewOutputLine(name string, pin OutputPin) ads123x.OutputLine {
	return &outputLine{name: name, pin: pin}
}

func (l *outputLine) SetHigh() error { return l.write(true) }
func (l *outputLine) SetLow() error  { return l.write(false) }

func (l *outputLine) write(value bool) error {
	lineOperationCounters.WithLabelValues(l.name).Inc()
	if err := l.pin.Write(value); err != nil {
		lineErrorCounters.WithLabelValues(l.name).Inc()
		return errors.Wrapf(err, "Write[%s] failed", l.name)
	}
	return nil
}

type inputLine struct {
	name string
	pin  InputPin
}

// NewInputLine turns a bridge input pin into a driver line.
func NewInputLine(name string, pin InputPin) ads123x.InputLine {
	return &inputLine{name: name, pin: pin}
}

func (l *inputLine) ReadLevel() (ads123x.Level, error) {
	lineOperationCounters.WithLabelValues(l.name).Inc()
	value, err := l.pin.Read()
	if err != nil {
		lineErrorCounters.WithLabelValues(l.name).Inc()
		return ads123x.Low, errors.Wrapf(err, "Read[%s] failed", l.name)
	}
	return ads123x.Level(value), nil
}

type edgeWaiter struct {
	name string
	pin  InterruptPin
	edge ads123x.Edge
}

// NewEdgeWaiter turns a bridge interrupt pin, opened for the given
// edge, into the edge capability of the driver.
func NewEdgeWaiter(name string, pin InterruptPin, edge ads123x.Edge) ads123x.EdgeWaiter {
	return &edgeWaiter{name: name, pin: pin, edge: edge}
}

// WaitForEdge implements ads123x.EdgeWaiter.
func (w *edgeWaiter) WaitForEdge(ctx context.Context, edge ads123x.Edge, timeout time.Duration) error {
	if edge != w.edge {
		return errors.Errorf("%s line reports %s edges only", w.name, w.edge)
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice := maxEdgeWaitSlice
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				edgeTimeoutCounters.WithLabelValues(w.name).Inc()
				return errors.WithStack(ads123x.TimeoutError)
			}
			if remaining < slice {
				slice = remaining
			}
		}
		start := time.Now()
		err := w.pin.Wait(slice)
		if err == nil {
			return nil
		}
		if time.Since(start) < slice {
			lineErrorCounters.WithLabelValues(w.name).Inc()
			return errors.Wrapf(err, "Wait[%s] failed", w.name)
		}
		// Slice elapsed without an edge.
	}
}
