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
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSignExtend24(t *testing.T) {
	tests := []struct {
		raw  uint32
		want int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 8388607},
		{0x800000, -8388608},
		{0xFFFFFF, -1},
		{0xFFFFF0, -16},
		{0x123456, 1193046},
		{0xFF7FFFFF, 8388607},
	}
	for _, test := range tests {
		if got := SignExtend24(test.raw); got != test.want {
			t.Errorf("SignExtend24(0x%06X): expected %d, got %d", test.raw, test.want, got)
		}
	}
}

func mustNew(t *testing.T, r *rig, initial Configuration, v Variant, opts ...Option) *Driver {
	t.Helper()
	d, err := New(r.lines(), initial, v, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestNewDrivesLines(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if r.clock.Level() != Low {
		t.Error("Clock must be low")
	}
	if r.pwdn.Level() != High {
		t.Error("Power-down must be released")
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle, got %s", d.State())
	}
	if _, found := d.Pending(); found {
		t.Error("Default configuration must not be pending")
	}
}

func TestReadEndToEnd(t *testing.T) {
	tests := []struct {
		raw  uint32
		want int32
	}{
		{0x123456, 1193046},
		{0xFFFFF0, -16},
	}
	for _, test := range tests {
		r := newRig()
		r.data.script(bitsOf(test.raw)...)
		d := mustNew(t, r, ADS1232.Default, ADS1232)
		value, err := d.Read(context.Background(), time.Second)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if value != test.want {
			t.Errorf("Read 0x%06X: expected %d, got %d", test.raw, test.want, value)
		}
		if n := r.pulses(); n != DataBits+ADS1232.PulseCount() {
			t.Errorf("Expected %d pulses, got %d", DataBits+ADS1232.PulseCount(), n)
		}
		// No change pending: current settings are repeated.
		if bits := r.configBits(); !slices.Equal(bits, []Level{High, High, Low}) {
			t.Errorf("Unexpected config bits %v", bits)
		}
		if r.clock.Level() != Low || r.config.Level() != Low {
			t.Error("Clock and config must end low")
		}
		if d.State() != StateIdle {
			t.Errorf("Expected idle, got %s", d.State())
		}
	}
}

func TestReadAsync(t *testing.T) {
	r := newRig()
	r.data.script(bitsOf(0x000010)...)
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	result := <-d.ReadAsync(context.Background(), time.Second)
	if result.Err != nil {
		t.Fatalf("ReadAsync failed: %v", result.Err)
	}
	if result.Value != 16 {
		t.Errorf("Expected 16, got %d", result.Value)
	}
}

func TestReadTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{time.Microsecond, 250 * time.Microsecond, time.Millisecond, 7 * time.Millisecond} {
		r := newRig()
		r.ready.def = High
		d := mustNew(t, r, ADS1232.Default, ADS1232)
		start := r.timer.Now()
		_, err := d.Read(context.Background(), timeout)
		if !IsTimeout(err) {
			t.Fatalf("Expected timeout, got %v", err)
		}
		if elapsed := r.timer.Now() - start; elapsed < timeout {
			t.Errorf("Timeout after %s, expected no earlier than %s", elapsed, timeout)
		}
		if r.clock.Level() != Low {
			t.Error("Clock must be low after timeout")
		}
		if d.State() != StateIdle {
			t.Errorf("Expected idle, got %s", d.State())
		}
		if r.pulses() != 0 {
			t.Error("No clock pulses expected")
		}
	}
}

func TestReadContextDeadline(t *testing.T) {
	r := newRig()
	r.ready.def = High
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := d.Read(ctx, 0); !IsTimeout(err) {
		t.Errorf("Expected timeout, got %v", err)
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle, got %s", d.State())
	}
}

func TestReadBusy(t *testing.T) {
	r := newRig()
	r.ready.def = High
	edges := &blockingEdges{started: make(chan struct{})}
	d := mustNew(t, r, ADS1232.Default, ADS1232, WithReadyWaiter(NewEdgeReadyWaiter(edges)))
	ctx, cancel := context.WithCancel(context.Background())
	results := d.ReadAsync(ctx, 0)
	<-edges.started

	if _, err := d.Read(context.Background(), time.Second); !IsBusy(err) {
		t.Errorf("Expected busy, got %v", err)
	}
	if err := d.Standby(context.Background(), time.Second); !IsBusy(err) {
		t.Errorf("Expected busy standby, got %v", err)
	}
	if err := d.PowerDown(); !IsBusy(err) {
		t.Errorf("Expected busy power down, got %v", err)
	}
	if d.State() != StateAwaitingReady {
		t.Errorf("Expected awaiting-ready, got %s", d.State())
	}

	cancel()
	result := <-results
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Expected canceled, got %v", result.Err)
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle, got %s", d.State())
	}
	if r.clock.Level() != Low {
		t.Error("Clock must be low after cancel")
	}
}

func TestSetGainWhileAwaitingReady(t *testing.T) {
	r := newRig()
	r.ready.def = High
	edges := &gatedEdges{ready: r.ready, started: make(chan struct{}), release: make(chan struct{})}
	d := mustNew(t, r, ADS1232.Default, ADS1232, WithReadyWaiter(NewEdgeReadyWaiter(edges)))
	results := d.ReadAsync(context.Background(), 0)
	<-edges.started

	if err := d.SetGain(Gain2); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}
	if d.Configuration() != ADS1232.Default {
		t.Errorf("Active configuration changed during read: %s", d.Configuration())
	}
	if p, found := d.Pending(); !found || p.Gain != Gain2 {
		t.Errorf("Expected gain 2 pending, got %s", p)
	}

	close(edges.release)
	if result := <-results; result.Err != nil {
		t.Fatalf("Read failed: %v", result.Err)
	}
	if bits := r.configBits(); !slices.Equal(bits, []Level{Low, High, Low}) {
		t.Errorf("Expected the new gain in the same read, got %v", bits)
	}
	if g := d.Configuration().Gain; g != Gain2 {
		t.Errorf("Expected active gain 2, got %s", g)
	}
	if _, found := d.Pending(); found {
		t.Error("No configuration must be pending")
	}
}

func TestSetGainDuringConfigPulses(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	record := r.clock.onHigh
	rising := 0
	var setErr error
	r.clock.onHigh = func() {
		record()
		rising++
		if rising == DataBits+1 {
			setErr = d.SetGain(Gain2)
		}
	}
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if setErr != nil {
		t.Fatalf("SetGain failed: %v", setErr)
	}
	if bits := r.configBits(); !slices.Equal(bits, []Level{High, High, Low}) {
		t.Errorf("Expected the old configuration to be clocked, got %v", bits)
	}
	if d.Configuration() != ADS1232.Default {
		t.Errorf("Active configuration must not change, got %s", d.Configuration())
	}
	if p, found := d.Pending(); !found || p.Gain != Gain2 {
		t.Fatalf("Expected gain 2 pending, got %s", p)
	}

	r.clock.onHigh = record
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if bits := r.configBits(); !slices.Equal(bits, []Level{Low, High, Low}) {
		t.Errorf("Expected the new gain in the next read, got %v", bits)
	}
	if g := d.Configuration().Gain; g != Gain2 {
		t.Errorf("Expected active gain 2, got %s", g)
	}
}

func TestUpdateRejectsInvalid(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	failed := errors.New("bad input")
	if _, err := d.Update(func(c *Configuration) error { return failed }); !errors.Is(err, failed) {
		t.Errorf("Expected modify error, got %v", err)
	}
	if _, err := d.Update(func(c *Configuration) error {
		c.Channel = AIN2
		return nil
	}); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config, got %v", err)
	}
	if _, found := d.Pending(); found {
		t.Error("Rejected updates must not be queued")
	}
	cfg, err := d.Update(func(c *Configuration) error {
		c.Speed = SpeedFast
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if p, found := d.Pending(); !found || p != cfg || cfg.Speed != SpeedFast {
		t.Errorf("Expected %s pending, got %s", cfg, p)
	}
}

func TestSetGainIdempotent(t *testing.T) {
	once := newRig()
	twice := newRig()
	d1 := mustNew(t, once, ADS1232.Default, ADS1232)
	d2 := mustNew(t, twice, ADS1232.Default, ADS1232)
	if err := d1.SetGain(Gain2); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := d2.SetGain(Gain2); err != nil {
			t.Fatalf("SetGain failed: %v", err)
		}
	}
	if _, err := d1.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := d2.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	b1, b2 := once.configBits(), twice.configBits()
	if !slices.Equal(b1, b2) {
		t.Errorf("Config bits differ: %v vs %v", b1, b2)
	}
	if !slices.Equal(b1, []Level{Low, High, Low}) {
		t.Errorf("Unexpected config bits %v", b1)
	}
	if g := d1.Configuration().Gain; g != Gain2 {
		t.Errorf("Expected active gain 2, got %s", g)
	}
}

func TestSetBackToActiveClearsPending(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.SetSpeed(SpeedFast); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	if _, found := d.Pending(); !found {
		t.Fatal("Expected pending configuration")
	}
	if err := d.SetSpeed(SpeedSlow); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	if _, found := d.Pending(); found {
		t.Error("Pending configuration must be cleared")
	}
}

func TestInitialConfigurationIsClockedIn(t *testing.T) {
	r := newRig()
	initial := Configuration{Gain: Gain64, Speed: SpeedFast, Channel: ChannelNone}
	d := mustNew(t, r, initial, ADS1232)
	if d.Configuration() != ADS1232.Default {
		t.Errorf("Expected default to be active, got %s", d.Configuration())
	}
	if p, found := d.Pending(); !found || p != initial {
		t.Errorf("Expected %s pending, got %s", initial, p)
	}
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if bits := r.configBits(); !slices.Equal(bits, []Level{High, Low, High}) {
		t.Errorf("Unexpected config bits %v", bits)
	}
	if d.Configuration() != initial {
		t.Errorf("Expected %s active, got %s", initial, d.Configuration())
	}
}

func TestChannelSelection(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1234.Default, ADS1234)
	if err := d.SetChannel(AIN3); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if bits := r.configBits(); !slices.Equal(bits, []Level{High, Low, Low}) {
		t.Errorf("Unexpected config bits %v", bits)
	}
	if r.timer.delayed(DefaultTiming.ChannelSettle) {
		t.Fatal("No settle delay expected before the channel change")
	}
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !r.timer.delayed(DefaultTiming.ChannelSettle) {
		t.Error("Expected settle delay after the channel change")
	}
}

func TestInvalidConfig(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.SetChannel(AIN1); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config for channel on ADS1232, got %v", err)
	}
	r2 := newRig()
	d2 := mustNew(t, r2, ADS1234.Default, ADS1234)
	if err := d2.SetGain(Gain1); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config for gain 1 on ADS1234, got %v", err)
	}
	if _, found := d2.Pending(); found {
		t.Error("Rejected change must not be queued")
	}
	if _, err := New(r.lines(), Configuration{Gain: Gain2, Channel: AIN2}, ADS1232); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid initial config, got %v", err)
	}
	lines := r.lines()
	lines.Config = nil
	if _, err := New(lines, ADS1232.Default, ADS1232); !IsInvalidConfig(err) {
		t.Errorf("Expected missing config line to be rejected, got %v", err)
	}
	if _, err := New(r.lines(), ADS1232.Default, ADS1232, WithTiming(Timing{ClockHigh: time.Millisecond})); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid timing, got %v", err)
	}
}

func TestPowerDownAndUp(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.SetGain(Gain1); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}
	if err := d.PowerDown(); err != nil {
		t.Fatalf("PowerDown failed: %v", err)
	}
	if r.pwdn.Level() != Low {
		t.Error("Power-down line must be active")
	}
	if d.State() != StatePoweredDown {
		t.Errorf("Expected powered-down, got %s", d.State())
	}
	if _, err := d.Read(context.Background(), time.Second); !IsNotPowered(err) {
		t.Errorf("Expected not powered, got %v", err)
	}
	if err := d.SetGain(Gain2); !IsNotPowered(err) {
		t.Errorf("Expected not powered, got %v", err)
	}
	if d.State() != StatePoweredDown {
		t.Errorf("Expected powered-down, got %s", d.State())
	}

	start := r.timer.Now()
	if err := d.PowerUp(); err != nil {
		t.Fatalf("PowerUp failed: %v", err)
	}
	if elapsed := r.timer.Now() - start; elapsed < DefaultTiming.WakeDelay {
		t.Errorf("Expected wake delay, got %s", elapsed)
	}
	if d.State() != StateIdle || d.Configuration() != ADS1232.Default {
		t.Errorf("Expected idle with default, got %s %s", d.State(), d.Configuration())
	}
	r.configBits()
	if _, err := d.Read(context.Background(), time.Second); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// The gain change made before power down is gone.
	if bits := r.configBits(); !slices.Equal(bits, []Level{High, High, Low}) {
		t.Errorf("Expected default config bits, got %v", bits)
	}
}

func TestTimingViolation(t *testing.T) {
	r := newRig()
	r.data.script(bitsOf(0x123456)...)
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.SetGain(Gain64); err != nil {
		t.Fatalf("SetGain failed: %v", err)
	}
	stalls := 0
	r.clock.onHigh = func() {
		stalls++
		if stalls == 5 {
			r.timer.advance(time.Millisecond)
		}
	}
	_, err := d.Read(context.Background(), time.Second)
	if !IsTimingViolation(err) {
		t.Fatalf("Expected timing violation, got %v", err)
	}
	if r.clock.Level() != Low {
		t.Error("Clock must be low")
	}
	if d.State() != StateIdle {
		t.Errorf("Expected idle, got %s", d.State())
	}
	if _, found := d.Pending(); !found {
		t.Error("Pending configuration must survive a failed read")
	}
}

func TestHardwareFault(t *testing.T) {
	lineErr := errors.New("pin gone")
	r := newRig()
	r.data.err = lineErr
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	_, err := d.Read(context.Background(), time.Second)
	if !IsHardwareFault(err) {
		t.Fatalf("Expected hardware fault, got %v", err)
	}
	if !errors.Is(err, lineErr) || !errors.Is(err, HardwareFaultError) {
		t.Errorf("Expected fault to wrap the line error, got %v", err)
	}
	if d.State() != StateIdle || r.clock.Level() != Low {
		t.Error("Expected idle with clock low")
	}
}

func TestHardwareFaultDuringConfigKeepsPending(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.SetSpeed(SpeedFast); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	r.config.err = errors.New("config pin gone")
	if _, err := d.Read(context.Background(), time.Second); !IsHardwareFault(err) {
		t.Fatalf("Expected hardware fault, got %v", err)
	}
	if p, found := d.Pending(); !found || p.Speed != SpeedFast {
		t.Error("Pending configuration must be restored")
	}
	if d.Configuration() != ADS1232.Default {
		t.Error("Active configuration must not change")
	}
}

func TestFailedReadLogsConfigLineFault(t *testing.T) {
	var buf bytes.Buffer
	r := newRig()
	d := mustNew(t, r, ADS1232.Default, ADS1232, WithLogger(zerolog.New(&buf)))
	r.config.err = errors.New("config pin gone")
	if _, err := d.Read(context.Background(), time.Second); !IsHardwareFault(err) {
		t.Fatalf("Expected hardware fault, got %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "failed to force config low") || !strings.Contains(out, "config pin gone") {
		t.Errorf("Expected config line fault to be logged, got %q", out)
	}
	if d.State() != StateIdle || r.clock.Level() != Low {
		t.Error("Expected idle with clock low")
	}
}

func TestEdgeReadyWaiter(t *testing.T) {
	r := newRig()
	r.ready.script(High)
	r.data.script(bitsOf(0x7FFFFF)...)
	edges := &scriptedEdges{ready: r.ready}
	d := mustNew(t, r, ADS1232.Default, ADS1232, WithReadyWaiter(NewEdgeReadyWaiter(edges)))
	value, err := d.Read(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if value != 8388607 {
		t.Errorf("Expected 8388607, got %d", value)
	}
	if !slices.Equal(edges.edges, []Edge{EdgeFalling}) {
		t.Errorf("Expected one falling edge wait, got %v", edges.edges)
	}
}

func TestEdgeReadyWaiterTimeout(t *testing.T) {
	r := newRig()
	r.ready.def = High
	edges := &scriptedEdges{ready: r.ready, err: TimeoutError}
	d := mustNew(t, r, ADS1232.Default, ADS1232, WithReadyWaiter(NewEdgeReadyWaiter(edges)))
	if _, err := d.Read(context.Background(), time.Millisecond); !IsTimeout(err) {
		t.Errorf("Expected timeout, got %v", err)
	}
	if d.State() != StateIdle || r.clock.Level() != Low {
		t.Error("Expected idle with clock low")
	}
}

func TestVariantWithoutConfigPulses(t *testing.T) {
	fixed := Variant{
		Name:     "ADS1232-fixed",
		Gains:    []Gain{Gain128},
		Speeds:   []Speed{SpeedSlow},
		Channels: []Channel{ChannelNone},
		Default:  Configuration{Gain: Gain128, Speed: SpeedSlow, Channel: ChannelNone},
	}
	r := newRig()
	r.data.script(bitsOf(0x800000)...)
	lines := r.lines()
	lines.Config = nil
	d, err := New(lines, fixed.Default, fixed)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	value, err := d.Read(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if value != -8388608 {
		t.Errorf("Expected -8388608, got %d", value)
	}
	if n := r.pulses(); n != DataBits {
		t.Errorf("Expected %d pulses, got %d", DataBits, n)
	}
}

func TestStandby(t *testing.T) {
	r := newRig()
	r.data.script(bitsOf(0x000042)...)
	d := mustNew(t, r, ADS1232.Default, ADS1232)
	if err := d.Standby(context.Background(), time.Second); err != nil {
		t.Fatalf("Standby failed: %v", err)
	}
	if d.State() != StateStandby || r.clock.Level() != High {
		t.Fatalf("Expected standby with clock high, got %s %s", d.State(), r.clock.Level())
	}
	if err := d.Standby(context.Background(), time.Second); err != nil {
		t.Errorf("Standby in standby must be a no-op, got %v", err)
	}
	value, err := d.Read(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if value != 0x42 {
		t.Errorf("Expected 66, got %d", value)
	}
	if d.State() != StateIdle || r.clock.Level() != Low {
		t.Error("Expected idle with clock low")
	}
}

func TestReset(t *testing.T) {
	r := newRig()
	d := mustNew(t, r, ADS1234.Default, ADS1234)
	if err := d.SetChannel(AIN2); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}
	if err := d.PowerDown(); err != nil {
		t.Fatalf("PowerDown failed: %v", err)
	}
	before := len(r.pwdn.History())
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	pulses := r.pwdn.History()[before:]
	if !slices.Equal(pulses, []Level{Low, High, Low, High}) {
		t.Errorf("Unexpected power-down sequence %v", pulses)
	}
	if d.State() != StateIdle || d.Configuration() != ADS1234.Default {
		t.Errorf("Expected idle with default, got %s %s", d.State(), d.Configuration())
	}
	if _, found := d.Pending(); found {
		t.Error("Reset must drop pending configuration")
	}
}
