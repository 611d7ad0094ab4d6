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

// ReadyWaiter waits until the ready line reports the given level.
// A timeout <= 0 waits until the context is done.
// Implementations return TimeoutError when the timeout elapses, the
// (wrapped) context error when the context is canceled and a
// HardwareFault when the line fails.
type ReadyWaiter interface {
	WaitReady(ctx context.Context, ready InputLine, level Level, timer Timer, timeout time.Duration) error
}

// PollWaiter samples the ready line until it reports the level.
type PollWaiter struct {
	// Interval between samples. Zero uses DefaultTiming.PollInterval.
	Interval time.Duration
}

var _ ReadyWaiter = PollWaiter{}

// WaitReady implements ReadyWaiter.
func (w PollWaiter) WaitReady(ctx context.Context, ready InputLine, level Level, timer Timer, timeout time.Duration) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultTiming.PollInterval
	}
	start := timer.Now()
	for {
		l, err := ready.ReadLevel()
		if err != nil {
			return fault("ready", err)
		}
		if l == level {
			return nil
		}
		if err := contextError(ctx); err != nil {
			return err
		}
		if timeout > 0 && timer.Now()-start >= timeout {
			return maskAny(TimeoutError)
		}
		timer.Delay(interval)
	}
}

type edgeReadyWaiter struct {
	edges EdgeWaiter
}

// NewEdgeReadyWaiter returns a ReadyWaiter that suspends on edges
// reported by the given EdgeWaiter instead of polling.
func NewEdgeReadyWaiter(edges EdgeWaiter) ReadyWaiter {
	return &edgeReadyWaiter{edges: edges}
}

// WaitReady implements ReadyWaiter.
func (w *edgeReadyWaiter) WaitReady(ctx context.Context, ready InputLine, level Level, timer Timer, timeout time.Duration) error {
	start := timer.Now()
	for {
		// The edge may already have passed.
		l, err := ready.ReadLevel()
		if err != nil {
			return fault("ready", err)
		}
		if l == level {
			return nil
		}
		if err := contextError(ctx); err != nil {
			return err
		}
		var remaining time.Duration
		if timeout > 0 {
			remaining = timeout - (timer.Now() - start)
			if remaining <= 0 {
				return maskAny(TimeoutError)
			}
		}
		if err := w.edges.WaitForEdge(ctx, edgeTo(level), remaining); err != nil {
			if IsTimeout(err) {
				return maskAny(TimeoutError)
			}
			if err := contextError(ctx); err != nil {
				return err
			}
			return fault("ready", err)
		}
	}
}

// contextError maps a done context onto the driver errors.
// An expired deadline is reported as TimeoutError.
func contextError(ctx context.Context) error {
	switch err := ctx.Err(); err {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return errors.Wrap(TimeoutError, err.Error())
	default:
		return maskAny(err)
	}
}
