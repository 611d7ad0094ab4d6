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
	"strconv"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

// ConfigurationUpdate is a partial configuration change.
// Fields that are nil keep their current value.
type ConfigurationUpdate struct {
	Gain    *int    `json:"gain,omitempty"`
	Speed   *string `json:"speed,omitempty"`
	Channel *string `json:"channel,omitempty"`
}

// IsEmpty returns true when the update changes nothing.
func (u ConfigurationUpdate) IsEmpty() bool {
	return u.Gain == nil && u.Speed == nil && u.Channel == nil
}

// Apply returns cfg with the update applied.
func (u ConfigurationUpdate) Apply(cfg ads123x.Configuration) (ads123x.Configuration, error) {
	if u.Gain != nil {
		g, err := ads123x.ParseGain(strconv.Itoa(*u.Gain))
		if err != nil {
			return cfg, err
		}
		cfg.Gain = g
	}
	if u.Speed != nil {
		s, err := ads123x.ParseSpeed(*u.Speed)
		if err != nil {
			return cfg, err
		}
		cfg.Speed = s
	}
	if u.Channel != nil {
		c, err := ads123x.ParseChannel(*u.Channel)
		if err != nil {
			return cfg, err
		}
		cfg.Channel = c
	}
	return cfg, nil
}

// Update applies a partial configuration change on top of the
// configuration the next reads will use.
func (s *Service) Update(u ConfigurationUpdate) (ads123x.Configuration, error) {
	next, err := s.Driver.Update(func(cfg *ads123x.Configuration) error {
		updated, err := u.Apply(*cfg)
		if err != nil {
			return err
		}
		*cfg = updated
		return nil
	})
	if err != nil {
		return ads123x.Configuration{}, err
	}
	s.queued(next)
	return next, nil
}
