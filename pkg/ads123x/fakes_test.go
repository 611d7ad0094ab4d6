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
	"sync"
	"time"
)

// virtualTimer advances only through Delay.
type virtualTimer struct {
	mutex  sync.Mutex
	now    time.Duration
	delays []time.Duration
}

func (t *virtualTimer) Now() time.Duration {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.now
}

func (t *virtualTimer) Delay(d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.now += d
	t.delays = append(t.delays, d)
}

func (t *virtualTimer) advance(d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.now += d
}

func (t *virtualTimer) delayed(d time.Duration) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, x := range t.delays {
		if x == d {
			return true
		}
	}
	return false
}

// fakeOutput records every level it is driven to.
type fakeOutput struct {
	mutex   sync.Mutex
	level   Level
	history []Level
	err     error
	onHigh  func()
}

func (o *fakeOutput) SetHigh() error { return o.set(High) }
func (o *fakeOutput) SetLow() error  { return o.set(Low) }

func (o *fakeOutput) set(l Level) error {
	o.mutex.Lock()
	if o.err != nil {
		err := o.err
		o.mutex.Unlock()
		return err
	}
	o.level = l
	o.history = append(o.history, l)
	hook := o.onHigh
	o.mutex.Unlock()
	if l == High && hook != nil {
		hook()
	}
	return nil
}

func (o *fakeOutput) Level() Level {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.level
}

func (o *fakeOutput) History() []Level {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]Level(nil), o.history...)
}

// fakeInput returns the scripted levels, then def.
type fakeInput struct {
	mutex  sync.Mutex
	levels []Level
	def    Level
	err    error
	reads  int
}

func (i *fakeInput) ReadLevel() (Level, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if i.err != nil {
		return Low, i.err
	}
	i.reads++
	if len(i.levels) > 0 {
		l := i.levels[0]
		i.levels = i.levels[1:]
		return l, nil
	}
	return i.def, nil
}

func (i *fakeInput) script(levels ...Level) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.levels = append(i.levels, levels...)
}

// bitsOf returns the 24 data bits of v, MSB first.
func bitsOf(v uint32) []Level {
	bits := make([]Level, 0, DataBits)
	for i := DataBits - 1; i >= 0; i-- {
		bits = append(bits, Level(v&(1<<uint(i)) != 0))
	}
	return bits
}

// rig is a simulated set of lines around one driver.
type rig struct {
	timer  *virtualTimer
	clock  *fakeOutput
	pwdn   *fakeOutput
	config *fakeOutput
	data   *fakeInput
	ready  *fakeInput

	mutex   sync.Mutex
	sampled []Level // config level at every rising clock edge
}

func newRig() *rig {
	r := &rig{
		timer:  &virtualTimer{},
		clock:  &fakeOutput{},
		pwdn:   &fakeOutput{},
		config: &fakeOutput{},
		data:   &fakeInput{},
		ready:  &fakeInput{def: Low},
	}
	r.clock.onHigh = func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.sampled = append(r.sampled, r.config.Level())
	}
	return r
}

func (r *rig) lines() Lines {
	return Lines{
		Clock:     r.clock,
		Data:      r.data,
		Ready:     r.ready,
		PowerDown: r.pwdn,
		Config:    r.config,
		Timer:     r.timer,
	}
}

// configBits returns the config levels of the pulses after the data bits
// of the last conversion, and clears the record.
func (r *rig) configBits() []Level {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var bits []Level
	if len(r.sampled) > DataBits {
		bits = append(bits, r.sampled[DataBits:]...)
	}
	r.sampled = nil
	return bits
}

// pulses returns the number of rising clock edges since the last configBits call.
func (r *rig) pulses() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sampled)
}

// blockingEdges blocks until the context is done.
type blockingEdges struct {
	started chan struct{}
	once    sync.Once
}

func (e *blockingEdges) WaitForEdge(ctx context.Context, edge Edge, timeout time.Duration) error {
	e.once.Do(func() { close(e.started) })
	<-ctx.Done()
	return ctx.Err()
}

// scriptedEdges reports an edge by setting the ready line.
type scriptedEdges struct {
	ready *fakeInput
	edges []Edge
	err   error
}

func (e *scriptedEdges) WaitForEdge(ctx context.Context, edge Edge, timeout time.Duration) error {
	e.edges = append(e.edges, edge)
	if e.err != nil {
		return e.err
	}
	e.ready.script(Level(edge == EdgeRising))
	return nil
}

// gatedEdges blocks until released, then reports the edge.
type gatedEdges struct {
	ready   *fakeInput
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *gatedEdges) WaitForEdge(ctx context.Context, edge Edge, timeout time.Duration) error {
	e.once.Do(func() { close(e.started) })
	select {
	case <-e.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.ready.script(Level(edge == EdgeRising))
	return nil
}
