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

package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

var (
	// InvalidArgumentError is returned for malformed board files.
	InvalidArgumentError = errors.New("invalid argument")
	maskAny              = errors.WithStack
)

// Duration is a time.Duration that reads "50us" style strings.
type Duration time.Duration

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(InvalidArgumentError, "duration '%s': %s", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(InvalidArgumentError, "duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// Pins lists the GPIO pin numbers the converter is wired to.
type Pins struct {
	Clock     int `json:"clock"`
	Data      int `json:"data"`
	Ready     int `json:"ready"`
	PowerDown int `json:"powerDown"`
	Config    int `json:"config"`
	// ActiveLow is set for boards with inverting buffers.
	ActiveLow bool `json:"activeLow,omitempty"`
}

// Chip describes the converter and its initial settings.
type Chip struct {
	Variant string `json:"variant"`
	Gain    string `json:"gain"`
	Speed   string `json:"speed"`
	Channel string `json:"channel"`
	// ReadyLevel is "low" or "high".
	ReadyLevel string `json:"readyLevel"`
	// ReadyStrategy is "poll" or "edge".
	ReadyStrategy string   `json:"readyStrategy"`
	ReadTimeout   Duration `json:"readTimeout"`
}

// Timing overrides the pulse timing. Zero values keep the defaults.
type Timing struct {
	ClockHigh     Duration `json:"clockHigh,omitempty"`
	SamplePoint   Duration `json:"samplePoint,omitempty"`
	ClockLow      Duration `json:"clockLow,omitempty"`
	MaxHigh       Duration `json:"maxHigh,omitempty"`
	WakeDelay     Duration `json:"wakeDelay,omitempty"`
	ChannelSettle Duration `json:"channelSettle,omitempty"`
	PollInterval  Duration `json:"pollInterval,omitempty"`
}

// History configures the sample store.
type History struct {
	Path      string `json:"path"`
	Retention int    `json:"retention"`
}

// MQTT configures the telemetry publisher.
type MQTT struct {
	Broker      string `json:"broker,omitempty"`
	ClientID    string `json:"clientID"`
	TopicPrefix string `json:"topicPrefix"`
	// LogTopic receives the log output when set.
	LogTopic string `json:"logTopic,omitempty"`
}

// Server configures the HTTP and SSH listeners.
type Server struct {
	Host        string `json:"host"`
	HTTPPort    int    `json:"httpPort"`
	SSHPort     int    `json:"sshPort"`
	HostKeyPath string `json:"hostKeyPath"`
}

// Simulator configures the simulated chip of the virtual bridge.
type Simulator struct {
	Period Duration `json:"period,omitempty"`
}

// Config is the content of a board file.
type Config struct {
	// Bridge is "rpi", "opz" or "virtual". Empty means auto detect.
	Bridge    string    `json:"bridge,omitempty"`
	Pins      Pins      `json:"pins"`
	Chip      Chip      `json:"chip"`
	Timing    Timing    `json:"timing,omitempty"`
	History   History   `json:"history"`
	MQTT      MQTT      `json:"mqtt"`
	Server    Server    `json:"server"`
	Simulator Simulator `json:"simulator,omitempty"`
}

// Default returns the configuration used without a board file.
func Default() Config {
	return Config{
		Pins: Pins{
			Clock:     5,
			Data:      6,
			Ready:     6,
			PowerDown: 13,
			Config:    26,
		},
		Chip: Chip{
			Variant:       ads123x.ADS1232.Name,
			Gain:          ads123x.Gain128.String(),
			Speed:         ads123x.SpeedSlow.String(),
			Channel:       ads123x.ChannelNone.String(),
			ReadyLevel:    "low",
			ReadyStrategy: "poll",
			ReadTimeout:   Duration(time.Second),
		},
		History: History{
			Path:      "ads123x.db",
			Retention: 10000,
		},
		MQTT: MQTT{
			ClientID:    "ads123x",
			TopicPrefix: "ads123x",
		},
		Server: Server{
			Host:        "0.0.0.0",
			HTTPPort:    7130,
			SSHPort:     7131,
			HostKeyPath: ".ssh/id_ed25519",
		},
	}
}

// Load reads a board file on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, maskAny(err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(InvalidArgumentError, "%s: %s", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrap(err, path)
	}
	return c, nil
}

// Marshal returns the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, maskAny(err)
	}
	return data, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Bridge {
	case "", "rpi", "opz", "virtual":
	default:
		return errors.Wrapf(InvalidArgumentError, "unknown bridge type '%s' (rpi|opz|virtual)", c.Bridge)
	}
	v, err := c.Variant()
	if err != nil {
		return err
	}
	if _, err := c.Configuration(v); err != nil {
		return err
	}
	if _, err := c.ReadyLevel(); err != nil {
		return err
	}
	switch c.Chip.ReadyStrategy {
	case "poll", "edge":
	default:
		return errors.Wrapf(InvalidArgumentError, "unknown ready strategy '%s' (poll|edge)", c.Chip.ReadyStrategy)
	}
	pins := map[int]string{}
	for name, pin := range map[string]int{
		"clock":     c.Pins.Clock,
		"data":      c.Pins.Data,
		"powerDown": c.Pins.PowerDown,
		"config":    c.Pins.Config,
	} {
		if other, found := pins[pin]; found {
			return errors.Wrapf(InvalidArgumentError, "pin %d used for %s and %s", pin, other, name)
		}
		pins[pin] = name
	}
	if c.Pins.Ready != c.Pins.Data {
		if other, found := pins[c.Pins.Ready]; found {
			return errors.Wrapf(InvalidArgumentError, "pin %d used for ready and %s", c.Pins.Ready, other)
		}
	}
	if c.History.Retention < 0 {
		return errors.Wrapf(InvalidArgumentError, "negative history retention %d", c.History.Retention)
	}
	return nil
}

// Variant returns the configured chip variant.
func (c Config) Variant() (ads123x.Variant, error) {
	return ads123x.VariantByName(c.Chip.Variant)
}

// Configuration returns the initial converter configuration.
func (c Config) Configuration(v ads123x.Variant) (ads123x.Configuration, error) {
	gain, err := ads123x.ParseGain(c.Chip.Gain)
	if err != nil {
		return ads123x.Configuration{}, err
	}
	speed, err := ads123x.ParseSpeed(c.Chip.Speed)
	if err != nil {
		return ads123x.Configuration{}, err
	}
	channel, err := ads123x.ParseChannel(c.Chip.Channel)
	if err != nil {
		return ads123x.Configuration{}, err
	}
	if channel == ads123x.ChannelNone && v.HasChannelSelection() {
		channel = v.Default.Channel
	}
	cfg := ads123x.Configuration{Gain: gain, Speed: speed, Channel: channel}
	if err := v.Check(cfg); err != nil {
		return ads123x.Configuration{}, err
	}
	return cfg, nil
}

// ReadyLevel returns the level of a completed conversion.
func (c Config) ReadyLevel() (ads123x.Level, error) {
	switch strings.ToLower(c.Chip.ReadyLevel) {
	case "low", "":
		return ads123x.Low, nil
	case "high":
		return ads123x.High, nil
	}
	return ads123x.Low, errors.Wrapf(InvalidArgumentError, "unknown ready level '%s' (low|high)", c.Chip.ReadyLevel)
}

// DriverTiming returns the timing overrides.
func (c Config) DriverTiming() ads123x.Timing {
	return ads123x.Timing{
		ClockHigh:     time.Duration(c.Timing.ClockHigh),
		SamplePoint:   time.Duration(c.Timing.SamplePoint),
		ClockLow:      time.Duration(c.Timing.ClockLow),
		MaxHigh:       time.Duration(c.Timing.MaxHigh),
		WakeDelay:     time.Duration(c.Timing.WakeDelay),
		ChannelSettle: time.Duration(c.Timing.ChannelSettle),
		PollInterval:  time.Duration(c.Timing.PollInterval),
	}
}
