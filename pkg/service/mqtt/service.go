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
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// QoS is the MQTT quality of service level.
type QoS byte

const (
	QosAtMostOnce  QoS = 0
	QosAtLeastOnce QoS = 1
	QosExactlyOnce QoS = 2
	QosDefault         = QosAtMostOnce
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

var (
	maskAny = errors.WithStack
)

// Config of the MQTT connection.
type Config struct {
	Log zerolog.Logger
	// Broker address (host:port or a URL like tcp://host:port).
	Broker   string
	ClientID string
	UserName string
	Password string
}

// Service publishes and receives JSON messages.
type Service interface {
	// Publish a JSON encoded message on the given topic.
	Publish(ctx context.Context, msg interface{}, topic string, qos QoS) error
	// PublishRetained publishes a JSON encoded message that the broker
	// keeps for new subscribers.
	PublishRetained(ctx context.Context, msg interface{}, topic string, qos QoS) error
	// Subscribe calls cb with the payload of every message on the topic.
	Subscribe(ctx context.Context, topic string, qos QoS, cb func(payload []byte)) error
	// Close disconnects from the broker.
	Close() error
}

type service struct {
	log    zerolog.Logger
	mutex  sync.Mutex
	client mqttapi.Client
}

// NewService connects to the broker.
func NewService(ctx context.Context, cfg Config) (Service, error) {
	if cfg.Broker == "" {
		return nil, errors.New("broker missing")
	}
	opts := mqttapi.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.ClientID)
	if cfg.UserName != "" {
		opts.SetUsername(cfg.UserName)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(c mqttapi.Client, err error) {
		cfg.Log.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})

	client := mqttapi.NewClient(opts)
	if err := wait(ctx, client.Connect(), connectTimeout); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to mqtt broker '%s'", cfg.Broker)
	}
	cfg.Log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	return &service{
		log:    cfg.Log,
		client: client,
	}, nil
}

// brokerURL adds a tcp scheme to a plain host:port address.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// wait for the token to complete, the context to be done or the timeout.
func wait(ctx context.Context, token mqttapi.Token, timeout time.Duration) error {
	select {
	case <-token.Done():
		return maskAny(token.Error())
	case <-ctx.Done():
		return maskAny(ctx.Err())
	case <-time.After(timeout):
		return errors.New("mqtt operation timed out")
	}
}

func (s *service) getClient() (mqttapi.Client, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.client == nil {
		return nil, errors.New("mqtt service closed")
	}
	return s.client, nil
}

// Publish implements Service.
func (s *service) Publish(ctx context.Context, msg interface{}, topic string, qos QoS) error {
	return s.publish(ctx, msg, topic, qos, false)
}

// PublishRetained implements Service.
func (s *service) PublishRetained(ctx context.Context, msg interface{}, topic string, qos QoS) error {
	return s.publish(ctx, msg, topic, qos, true)
}

func (s *service) publish(ctx context.Context, msg interface{}, topic string, qos QoS, retained bool) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return maskAny(err)
	}
	token := client.Publish(topic, byte(qos), retained, payload)
	if err := wait(ctx, token, connectTimeout); err != nil {
		return errors.Wrapf(err, "failed to publish to '%s'", topic)
	}
	return nil
}

// Subscribe implements Service.
func (s *service) Subscribe(ctx context.Context, topic string, qos QoS, cb func(payload []byte)) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	token := client.Subscribe(topic, byte(qos), func(c mqttapi.Client, m mqttapi.Message) {
		cb(m.Payload())
	})
	if err := wait(ctx, token, connectTimeout); err != nil {
		return errors.Wrapf(err, "failed to subscribe to '%s'", topic)
	}
	return nil
}

// Close implements Service.
func (s *service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.client != nil {
		s.client.Disconnect(disconnectQuiesce)
		s.client = nil
	}
	return nil
}
