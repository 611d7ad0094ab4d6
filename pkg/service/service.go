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
	"fmt"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/config"
	"github.com/adom-inc/ads123x/pkg/environment"
	"github.com/adom-inc/ads123x/pkg/logging"
	"github.com/adom-inc/ads123x/pkg/service/bridge"
	"github.com/adom-inc/ads123x/pkg/service/mqtt"
	"github.com/adom-inc/ads123x/pkg/service/sampler"
	"github.com/adom-inc/ads123x/pkg/service/store"
	"github.com/adom-inc/ads123x/pkg/service/util"
)

var (
	// AlreadyRunningError is returned when Run is called twice.
	AlreadyRunningError = errors.New("already running")
)

type Config struct {
	ProgramVersion string
	// BridgeType is the resolved bridge type (rpi|opz|virtual).
	BridgeType string
	Board      config.Config
}

type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	// MQTTLogWriter receives the MQTT destination for the log output. Optional.
	MQTTLogWriter logging.MQTTWriter
}

// Service wires the converter driver, the sampler and its outputs.
type Service struct {
	Config
	Dependencies

	driver  *ads123x.Driver
	sampler *sampler.Service
	store   *store.Store
	runSem  *semaphore.Weighted

	mutex  sync.Mutex
	closed bool
}

// NewService opens the converter lines and creates a Service.
func NewService(conf Config, deps Dependencies) (*Service, error) {
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	board := conf.Board
	if err := board.Validate(); err != nil {
		return nil, err
	}
	v, err := board.Variant()
	if err != nil {
		return nil, err
	}
	initial, err := board.Configuration(v)
	if err != nil {
		return nil, err
	}
	readyLevel, err := board.ReadyLevel()
	if err != nil {
		return nil, err
	}
	lines, waiter, err := OpenLines(deps.Bridge, board, v)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open converter lines")
	}
	driver, err := ads123x.New(lines, initial, v,
		ads123x.WithTiming(board.DriverTiming()),
		ads123x.WithReadyWaiter(waiter),
		ads123x.WithReadyLevel(readyLevel),
		ads123x.WithLogger(deps.Logger.With().Str("component", "driver").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create driver")
	}
	s := &Service{
		Config:       conf,
		Dependencies: deps,
		driver:       driver,
		runSem:       semaphore.NewWeighted(1),
	}
	var sampleStore sampler.Store
	if path := board.History.Path; path != "" {
		st, err := store.Open(path, board.History.Retention)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to open sample history")
		}
		s.store = st
		sampleStore = st
	}
	s.sampler, err = sampler.New(sampler.Config{
		ReadTimeout: time.Duration(board.Chip.ReadTimeout),
	}, sampler.Dependencies{
		Log:    deps.Logger.With().Str("component", "sampler").Logger(),
		Driver: driver,
		Store:  sampleStore,
		LEDs:   deps.Bridge,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	serviceInfoGauge.WithLabelValues(conf.ProgramVersion, v.Name, conf.BridgeType).Set(1)
	deps.Logger.Info().
		Str("variant", v.Name).
		Object("configuration", initial).
		Str("ready-strategy", board.Chip.ReadyStrategy).
		Msg("Converter driver created")
	return s, nil
}

// Sampler returns the sampler of the service.
func (s *Service) Sampler() *sampler.Service {
	return s.sampler
}

// Run the service until the given context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if !s.runSem.TryAcquire(1) {
		return AlreadyRunningError
	}
	defer s.runSem.Release(1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sampler.Run(ctx) })
	if s.Board.MQTT.Broker != "" {
		g.Go(func() error { return s.runMQTT(ctx) })
	}
	return g.Wait()
}

// runMQTT (re)connects to the MQTT broker and publishes until the
// context is canceled.
func (s *Service) runMQTT(ctx context.Context) error {
	log := s.Logger.With().Str("broker", s.Board.MQTT.Broker).Logger()
	conf := s.Board.MQTT
	clientID := conf.ClientID
	if hostID, err := environment.HostID(); err == nil {
		clientID = fmt.Sprintf("%s-%s", clientID, hostID)
	}
	return util.UntilCanceled(ctx, log, "mqtt", func() error {
		mqttConnectsTotal.Inc()
		svc, err := mqtt.NewService(ctx, mqtt.Config{
			Log:      log,
			Broker:   conf.Broker,
			ClientID: clientID,
		})
		if err != nil {
			mqttConnectErrorsTotal.Inc()
			return err
		}
		defer svc.Close()
		publisher := mqtt.NewPublisher(log, svc, conf.TopicPrefix, s.sampler)
		if w := s.MQTTLogWriter; w != nil && conf.LogTopic != "" {
			w.SetDestination(conf.LogTopic, logging.PublisherFunc(func(ctx context.Context, msg interface{}, topic string) error {
				return svc.Publish(ctx, msg, topic, mqtt.QosDefault)
			}))
			w.Enable(true)
			defer w.Enable(false)
		}
		return publisher.Run(ctx)
	})
}

// Close powers down the converter and releases all resources.
func (s *Service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var ae aerr.AggregateError
	if err := s.driver.PowerDown(); err != nil {
		ae.Add(errors.Wrap(err, "power down"))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			ae.Add(errors.Wrap(err, "close history"))
		}
	}
	if err := s.Bridge.Close(); err != nil {
		ae.Add(errors.Wrap(err, "close bridge"))
	}
	return ae.AsError()
}
