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

package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/service/sampler"
	"github.com/adom-inc/ads123x/pkg/service/store"
)

// Topic suffixes below the configured prefix.
const (
	TopicSample    = "sample"
	TopicConfig    = "config"
	TopicConfigSet = "config/set"
	TopicLog       = "log"
)

const (
	sampleQueueSize = 64
	publishTimeout  = 200 * time.Millisecond
)

// Source provides the samples and configuration to publish.
type Source interface {
	Subscribe(cb func(store.Sample)) context.CancelFunc
	SubscribeConfig(cb func(ads123x.Configuration)) context.CancelFunc
	Configuration() ads123x.Configuration
	Update(u sampler.ConfigurationUpdate) (ads123x.Configuration, error)
}

// ConfigSetResult is published on the "config/set/result" topic
// after a configuration request.
type ConfigSetResult struct {
	Configuration *ads123x.Configuration `json:"configuration,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// Publisher forwards samples and configuration changes to MQTT and
// accepts configuration requests.
type Publisher struct {
	log     zerolog.Logger
	service Service
	prefix  string
	source  Source
}

// NewPublisher creates a publisher for the given topic prefix.
func NewPublisher(log zerolog.Logger, service Service, topicPrefix string, source Source) *Publisher {
	return &Publisher{
		log:     log,
		service: service,
		prefix:  strings.TrimSuffix(topicPrefix, "/"),
		source:  source,
	}
}

// Topic returns the full topic for the given suffix.
func (p *Publisher) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "/" + suffix
}

// Run publishes until the context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	samples := make(chan store.Sample, sampleQueueSize)
	configs := make(chan ads123x.Configuration, 1)
	defer p.source.Subscribe(func(s store.Sample) {
		select {
		case samples <- s:
		default:
			// Drop when the broker cannot keep up
		}
	})()
	defer p.source.SubscribeConfig(func(c ads123x.Configuration) {
		select {
		case configs <- c:
		default:
		}
	})()

	if err := p.service.Subscribe(ctx, p.Topic(TopicConfigSet), QosAtLeastOnce, func(payload []byte) {
		p.handleConfigSet(ctx, payload)
	}); err != nil {
		return err
	}
	p.publishConfig(ctx, p.source.Configuration())

	for {
		select {
		case s := <-samples:
			if err := p.publish(ctx, s, TopicSample); err != nil {
				p.log.Debug().Err(err).Uint64("seq", s.Seq).Msg("Failed to publish sample")
			}
		case c := <-configs:
			p.publishConfig(ctx, c)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg interface{}, suffix string) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.service.Publish(ctx, msg, p.Topic(suffix), QosDefault)
}

func (p *Publisher) publishConfig(ctx context.Context, cfg ads123x.Configuration) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.service.PublishRetained(ctx, cfg, p.Topic(TopicConfig), QosAtLeastOnce); err != nil {
		p.log.Warn().Err(err).Msg("Failed to publish configuration")
	}
}

// handleConfigSet applies a configuration request and publishes the result.
func (p *Publisher) handleConfigSet(ctx context.Context, payload []byte) {
	var result ConfigSetResult
	if cfg, err := p.applyConfigSet(payload); err != nil {
		p.log.Warn().Err(err).Msg("Rejected configuration request")
		result.Error = err.Error()
	} else {
		result.Configuration = &cfg
	}
	if err := p.publish(ctx, result, TopicConfigSet+"/result"); err != nil {
		p.log.Debug().Err(err).Msg("Failed to publish configuration result")
	}
}

func (p *Publisher) applyConfigSet(payload []byte) (ads123x.Configuration, error) {
	var u sampler.ConfigurationUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return ads123x.Configuration{}, errors.Wrap(ads123x.InvalidConfigError, err.Error())
	}
	if u.IsEmpty() {
		return ads123x.Configuration{}, errors.Wrap(ads123x.InvalidConfigError, "empty configuration request")
	}
	return p.source.Update(u)
}
