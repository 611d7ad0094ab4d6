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

package sampler

import (
	"context"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/service/store"
	"github.com/adom-inc/ads123x/pkg/service/util"
)

const (
	historySize   = 256
	pausedDelay   = 50 * time.Millisecond
	logEverySeq   = 1000
	errorBlinking = 250 * time.Millisecond
)

var (
	// NotAvailableError is returned when no sample has been read yet.
	NotAvailableError = errors.New("not available")
	maskAny           = errors.WithStack
)

// Driver is the part of the converter driver used by the sampler.
type Driver interface {
	Read(ctx context.Context, timeout time.Duration) (int32, error)
	Standby(ctx context.Context, timeout time.Duration) error
	State() ads123x.State
	Variant() ads123x.Variant
	Configuration() ads123x.Configuration
	Pending() (ads123x.Configuration, bool)
	SetConfiguration(cfg ads123x.Configuration) error
	Update(modify func(*ads123x.Configuration) error) (ads123x.Configuration, error)
	PowerDown() error
	PowerUp() error
	Reset() error
}

// Store persists samples.
type Store interface {
	LastSeq() (uint64, error)
	Append(sample store.Sample) error
	Recent(n int) ([]store.Sample, error)
}

// LEDs are the status leds of the bridge.
type LEDs interface {
	SetGreenLED(on bool) error
	SetRedLED(on bool) error
	BlinkRedLED(delay time.Duration) error
}

// Config of the sampler.
type Config struct {
	// ReadTimeout bounds the wait for a conversion.
	ReadTimeout time.Duration
}

// Dependencies of the sampler.
type Dependencies struct {
	Log    zerolog.Logger
	Driver Driver
	// Store is optional.
	Store Store
	// LEDs is optional.
	LEDs LEDs
}

// Status summarizes the state of the sampler.
type Status struct {
	State         string                 `json:"state"`
	Variant       string                 `json:"variant"`
	Configuration ads123x.Configuration  `json:"configuration"`
	Pending       *ads123x.Configuration `json:"pending,omitempty"`
	Paused        bool                   `json:"paused"`
	Reads         uint64                 `json:"reads"`
	Errors        uint64                 `json:"errors"`
	LastError     string                 `json:"lastError,omitempty"`
}

// Service reads conversions continuously and distributes them.
type Service struct {
	Config
	Dependencies

	samples *pubsub.PubSub
	configs *pubsub.PubSub

	// opMutex serializes reads with power and standby operations.
	opMutex sync.Mutex

	mutex     sync.Mutex
	seq       uint64
	latest    *store.Sample
	history   []store.Sample
	paused    bool
	reads     uint64
	failures  uint64
	lastError error
	redLed    bool
}

// New creates a sampler.
func New(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Driver == nil {
		return nil, errors.New("driver missing")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	s := &Service{
		Config:       cfg,
		Dependencies: deps,
		samples:      pubsub.New(),
		configs:      pubsub.New(),
	}
	if deps.Store != nil {
		seq, err := deps.Store.LastSeq()
		if err != nil {
			return nil, errors.Wrap(err, "LastSeq failed")
		}
		s.seq = seq
	}
	if deps.Driver.State() != ads123x.StatePoweredDown {
		poweredGauge.Set(1)
	}
	return s, nil
}

// Run reads conversions until the given context is canceled.
func (s *Service) Run(ctx context.Context) error {
	log := s.Log
	log.Info().
		Str("variant", s.Driver.Variant().Name).
		Object("configuration", s.Driver.Configuration()).
		Msg("Starting sampler")
	s.setGreenLED(true)
	defer s.setGreenLED(false)
	return util.UntilCanceled(ctx, log, "read conversion", func() error {
		return s.readOnce(ctx)
	})
}

// readOnce reads a single conversion, unless paused.
func (s *Service) readOnce(ctx context.Context) error {
	s.opMutex.Lock()
	if s.isPaused() {
		s.opMutex.Unlock()
		select {
		case <-ctx.Done():
		case <-time.After(pausedDelay):
		}
		return nil
	}
	cfg := s.Driver.Configuration()
	start := time.Now()
	value, err := s.Driver.Read(ctx, s.ReadTimeout)
	s.opMutex.Unlock()
	readDurationHistogram.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.recordError(err)
		return err
	}
	readsTotal.Inc()
	lastValueGauge.Set(float64(value))
	sample := s.record(value, cfg, time.Now())
	if s.Store != nil {
		if err := s.Store.Append(sample); err != nil {
			s.Log.Warn().Err(err).Uint64("seq", sample.Seq).Msg("Failed to store sample")
		}
	}
	s.samples.Pub(sample)
	if sample.Seq%logEverySeq == 0 {
		s.Log.Debug().
			Str("seq", humanize.Comma(int64(sample.Seq))).
			Int32("value", value).
			Msg("Sampling")
	}
	return nil
}

func (s *Service) isPaused() bool {
	if s.Driver.State() == ads123x.StatePoweredDown {
		return true
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.paused
}

// record stores a successful read as the latest sample.
func (s *Service) record(value int32, cfg ads123x.Configuration, t time.Time) store.Sample {
	s.mutex.Lock()
	s.seq++
	s.reads++
	sample := store.NewSample(s.seq, value, cfg, t)
	s.latest = &sample
	s.history = append(s.history, sample)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	clearRed := s.redLed
	s.redLed = false
	s.lastError = nil
	s.mutex.Unlock()
	if clearRed {
		s.setRedLED(false)
	}
	return sample
}

// recordError counts a failed read.
func (s *Service) recordError(err error) {
	readErrorCounters.WithLabelValues(ErrorKind(err)).Inc()
	s.mutex.Lock()
	s.failures++
	s.lastError = err
	setRed := !s.redLed
	s.redLed = true
	s.mutex.Unlock()
	if setRed && s.LEDs != nil {
		if err := s.LEDs.BlinkRedLED(errorBlinking); err != nil {
			s.Log.Debug().Err(err).Msg("BlinkRedLED failed")
		}
	}
}

func (s *Service) setGreenLED(on bool) {
	if s.LEDs != nil {
		if err := s.LEDs.SetGreenLED(on); err != nil {
			s.Log.Debug().Err(err).Msg("SetGreenLED failed")
		}
	}
}

func (s *Service) setRedLED(on bool) {
	if s.LEDs != nil {
		if err := s.LEDs.SetRedLED(on); err != nil {
			s.Log.Debug().Err(err).Msg("SetRedLED failed")
		}
	}
}

// ErrorKind returns a short name for the kind of a driver error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case ads123x.IsTimeout(err):
		return "timeout"
	case ads123x.IsTimingViolation(err):
		return "timing_violation"
	case ads123x.IsBusy(err):
		return "busy"
	case ads123x.IsNotPowered(err):
		return "not_powered"
	case ads123x.IsInvalidConfig(err):
		return "invalid_config"
	case ads123x.IsHardwareFault(err):
		return "hardware_fault"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "other"
}

// Latest returns the most recent sample.
func (s *Service) Latest() (store.Sample, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.latest == nil {
		return store.Sample{}, maskAny(NotAvailableError)
	}
	return *s.latest, nil
}

// Recent returns up to n recent samples, oldest first.
func (s *Service) Recent(n int) ([]store.Sample, error) {
	if n <= 0 {
		return nil, nil
	}
	if s.Store != nil {
		result, err := s.Store.Recent(n)
		if err != nil {
			return nil, maskAny(err)
		}
		return result, nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	from := len(s.history) - n
	if from < 0 {
		from = 0
	}
	return append([]store.Sample(nil), s.history[from:]...), nil
}

// Subscribe registers a callback for every new sample.
// Call the returned function to unsubscribe.
func (s *Service) Subscribe(cb func(store.Sample)) context.CancelFunc {
	s.samples.Sub(cb)
	return func() {
		s.samples.Leave(cb)
	}
}

// SubscribeConfig registers a callback for every accepted configuration
// change. Call the returned function to unsubscribe.
func (s *Service) SubscribeConfig(cb func(ads123x.Configuration)) context.CancelFunc {
	s.configs.Sub(cb)
	return func() {
		s.configs.Leave(cb)
	}
}

// Status returns a summary of the sampler and the driver.
func (s *Service) Status() Status {
	st := Status{
		State:         s.Driver.State().String(),
		Variant:       s.Driver.Variant().Name,
		Configuration: s.Driver.Configuration(),
	}
	if p, found := s.Driver.Pending(); found {
		st.Pending = &p
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	st.Paused = s.paused
	st.Reads = s.reads
	st.Errors = s.failures
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// Variant returns the chip variant of the driver.
func (s *Service) Variant() ads123x.Variant {
	return s.Driver.Variant()
}

// SetConfiguration queues a configuration change.
// It does not wait for a running read.
func (s *Service) SetConfiguration(cfg ads123x.Configuration) error {
	if err := s.Driver.SetConfiguration(cfg); err != nil {
		return err
	}
	s.queued(cfg)
	return nil
}

func (s *Service) queued(cfg ads123x.Configuration) {
	configChangesTotal.Inc()
	s.Log.Info().Object("configuration", cfg).Msg("Configuration change queued")
	s.configs.Pub(cfg)
}

// Configuration returns the configuration that the next reads will use,
// including a queued change.
func (s *Service) Configuration() ads123x.Configuration {
	if p, found := s.Driver.Pending(); found {
		return p
	}
	return s.Driver.Configuration()
}

// SetPower powers the converter up or down.
func (s *Service) SetPower(on bool) error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	if on {
		if err := s.Driver.PowerUp(); err != nil {
			return err
		}
		poweredGauge.Set(1)
		s.setPaused(false)
		s.configs.Pub(s.Driver.Configuration())
		s.Log.Info().Msg("Converter powered up")
		return nil
	}
	if err := s.Driver.PowerDown(); err != nil {
		return err
	}
	poweredGauge.Set(0)
	s.Log.Info().Msg("Converter powered down")
	return nil
}

// Reset resets the converter and resumes sampling.
func (s *Service) Reset() error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	if err := s.Driver.Reset(); err != nil {
		return err
	}
	poweredGauge.Set(1)
	s.setPaused(false)
	s.configs.Pub(s.Driver.Configuration())
	s.Log.Info().Msg("Converter reset")
	return nil
}

// Standby stops sampling and puts the converter in standby.
func (s *Service) Standby(ctx context.Context) error {
	s.opMutex.Lock()
	defer s.opMutex.Unlock()
	if err := s.Driver.Standby(ctx, s.ReadTimeout); err != nil {
		return err
	}
	s.setPaused(true)
	s.Log.Info().Msg("Converter in standby")
	return nil
}

// Resume continues sampling after Standby.
func (s *Service) Resume() {
	s.setPaused(false)
}

func (s *Service) setPaused(paused bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.paused = paused
}
