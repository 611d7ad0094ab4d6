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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Gain of the programmable gain amplifier.
type Gain uint8

const (
	Gain1 Gain = iota
	Gain2
	Gain64
	Gain128
)

var gainNames = []string{"1", "2", "64", "128"}

// Multiplier returns the amplification factor.
func (g Gain) Multiplier() int {
	switch g {
	case Gain1:
		return 1
	case Gain2:
		return 2
	case Gain64:
		return 64
	case Gain128:
		return 128
	}
	return 0
}

func (g Gain) String() string {
	if int(g) < len(gainNames) {
		return gainNames[g]
	}
	return fmt.Sprintf("Gain(%d)", uint8(g))
}

// ParseGain parses a gain multiplier ("1", "2", "64", "128").
func ParseGain(s string) (Gain, error) {
	for i, n := range gainNames {
		if n == s {
			return Gain(i), nil
		}
	}
	return 0, errors.Wrapf(InvalidConfigError, "unknown gain '%s'", s)
}

// Speed selects the output data rate.
type Speed uint8

const (
	// SpeedSlow selects 10 samples per second.
	SpeedSlow Speed = iota
	// SpeedFast selects 80 samples per second.
	SpeedFast
)

// SamplesPerSecond returns the nominal data rate.
func (s Speed) SamplesPerSecond() int {
	if s == SpeedFast {
		return 80
	}
	return 10
}

func (s Speed) String() string {
	switch s {
	case SpeedSlow:
		return "slow"
	case SpeedFast:
		return "fast"
	}
	return fmt.Sprintf("Speed(%d)", uint8(s))
}

// ParseSpeed parses "slow" or "fast".
func ParseSpeed(s string) (Speed, error) {
	switch strings.ToLower(s) {
	case "slow", "10":
		return SpeedSlow, nil
	case "fast", "80":
		return SpeedFast, nil
	}
	return 0, errors.Wrapf(InvalidConfigError, "unknown speed '%s'", s)
}

// Channel selects the analog input.
type Channel uint8

const (
	// ChannelNone is used by variants without input selection.
	ChannelNone Channel = iota
	AIN1
	AIN2
	AIN3
	AIN4
)

var channelNames = []string{"none", "ain1", "ain2", "ain3", "ain4"}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// ParseChannel parses "none" or "ain1".."ain4".
func ParseChannel(s string) (Channel, error) {
	s = strings.ToLower(s)
	for i, n := range channelNames {
		if n == s {
			return Channel(i), nil
		}
	}
	return 0, errors.Wrapf(InvalidConfigError, "unknown channel '%s'", s)
}

// Configuration selects gain, speed and input for a conversion.
type Configuration struct {
	Gain    Gain
	Speed   Speed
	Channel Channel
}

var _ zerolog.LogObjectMarshaler = Configuration{}

func (c Configuration) String() string {
	return fmt.Sprintf("gain=%s speed=%s channel=%s", c.Gain, c.Speed, c.Channel)
}

// MarshalZerologObject adds the configuration fields to a log event.
func (c Configuration) MarshalZerologObject(e *zerolog.Event) {
	e.Int("gain", c.Gain.Multiplier()).
		Str("speed", c.Speed.String()).
		Str("channel", c.Channel.String())
}

type configurationJSON struct {
	Gain    int    `json:"gain"`
	Speed   string `json:"speed"`
	Channel string `json:"channel"`
}

// MarshalJSON writes the configuration as {"gain":128,"speed":"slow","channel":"none"}.
func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(configurationJSON{
		Gain:    c.Gain.Multiplier(),
		Speed:   c.Speed.String(),
		Channel: c.Channel.String(),
	})
}

// UnmarshalJSON reads the format written by MarshalJSON.
// A missing channel selects ChannelNone.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw configurationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(InvalidConfigError, err.Error())
	}
	gain, err := ParseGain(strconv.Itoa(raw.Gain))
	if err != nil {
		return err
	}
	speed, err := ParseSpeed(raw.Speed)
	if err != nil {
		return err
	}
	channel := ChannelNone
	if raw.Channel != "" {
		if channel, err = ParseChannel(raw.Channel); err != nil {
			return err
		}
	}
	*c = Configuration{Gain: gain, Speed: speed, Channel: channel}
	return nil
}
