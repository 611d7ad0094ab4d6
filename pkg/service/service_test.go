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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/config"
	"github.com/adom-inc/ads123x/pkg/environment"
	"github.com/adom-inc/ads123x/pkg/service/bridge"
)

func newVirtualService(t *testing.T, modify func(*config.Config)) (*Service, *bridge.Simulator) {
	t.Helper()
	board := config.Default()
	board.History.Path = filepath.Join(t.TempDir(), "samples.db")
	board.Simulator.Period = config.Duration(2 * time.Millisecond)
	board.Timing.MaxHigh = config.Duration(time.Second)
	if modify != nil {
		modify(&board)
	}
	b, sim, err := NewBridge(environment.BridgeVirtual, board)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	s, err := NewService(Config{
		ProgramVersion: "test",
		BridgeType:     environment.BridgeVirtual,
		Board:          board,
	}, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: b,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s, sim
}

func runService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
}

func waitForReads(t *testing.T, s *Service, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Sampler().Status().Reads < n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d reads, got %d", n, s.Sampler().Status().Reads)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServiceVirtualBridge(t *testing.T) {
	for _, strategy := range []string{"poll", "edge"} {
		t.Run(strategy, func(t *testing.T) {
			s, sim := newVirtualService(t, func(c *config.Config) {
				c.Chip.ReadyStrategy = strategy
			})
			runService(t, s)
			waitForReads(t, s, 3)
			if sim.Conversions() < 3 {
				t.Errorf("Expected at least 3 conversions, got %d", sim.Conversions())
			}
			recent, err := s.Sampler().Recent(3)
			if err != nil {
				t.Fatalf("Recent failed: %v", err)
			}
			if len(recent) != 3 {
				t.Errorf("Expected 3 stored samples, got %d", len(recent))
			}
		})
	}
}

func TestServiceADS1234InitialChannel(t *testing.T) {
	s, sim := newVirtualService(t, func(c *config.Config) {
		c.Chip.Variant = "ADS1234"
		c.Chip.Channel = "ain2"
	})
	runService(t, s)
	waitForReads(t, s, 2)
	expected := ads123x.Configuration{Gain: ads123x.Gain128, Speed: ads123x.SpeedSlow, Channel: ads123x.AIN2}
	if got := sim.Configuration(); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}

func TestServiceRunTwice(t *testing.T) {
	s, _ := newVirtualService(t, nil)
	runService(t, s)
	waitForReads(t, s, 1)
	if err := s.Run(context.Background()); err != AlreadyRunningError {
		t.Errorf("Expected AlreadyRunningError, got %v", err)
	}
}

func TestServiceClosePowersDown(t *testing.T) {
	s, sim := newVirtualService(t, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sim.Powered() {
		t.Error("Converter must be powered down after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestNewBridgeUnknown(t *testing.T) {
	if _, _, err := NewBridge("arduino", config.Default()); err == nil {
		t.Error("Expected error for unknown bridge type")
	}
}
