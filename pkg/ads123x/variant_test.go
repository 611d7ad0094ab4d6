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
	"slices"
	"testing"
)

func TestEncodeADS1232(t *testing.T) {
	tests := []struct {
		gain  Gain
		speed Speed
		want  []Level
	}{
		{Gain1, SpeedSlow, []Level{Low, Low, Low}},
		{Gain2, SpeedFast, []Level{Low, High, High}},
		{Gain64, SpeedSlow, []Level{High, Low, Low}},
		{Gain128, SpeedFast, []Level{High, High, High}},
	}
	for _, test := range tests {
		bits, err := Encode(Configuration{Gain: test.gain, Speed: test.speed}, ADS1232)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !slices.Equal(bits, test.want) {
			t.Errorf("Encode gain=%s speed=%s: expected %v, got %v", test.gain, test.speed, test.want, bits)
		}
	}
}

func TestEncodeADS1234(t *testing.T) {
	tests := []struct {
		channel Channel
		want    []Level
	}{
		{AIN1, []Level{Low, Low, Low}},
		{AIN2, []Level{Low, High, Low}},
		{AIN3, []Level{High, Low, Low}},
		{AIN4, []Level{High, High, Low}},
	}
	for _, test := range tests {
		bits, err := Encode(Configuration{Gain: Gain128, Speed: SpeedSlow, Channel: test.channel}, ADS1234)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !slices.Equal(bits, test.want) {
			t.Errorf("Encode channel=%s: expected %v, got %v", test.channel, test.want, bits)
		}
	}
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	if _, err := Encode(Configuration{Gain: Gain128, Channel: AIN1}, ADS1232); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config, got %v", err)
	}
	if _, err := Encode(Configuration{Gain: Gain64, Channel: AIN1}, ADS1234); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}

func TestBuiltinVariantsValid(t *testing.T) {
	for _, v := range []Variant{ADS1232, ADS1234} {
		if err := v.Validate(); err != nil {
			t.Errorf("%s: %v", v.Name, err)
		}
		if v.PulseCount() != 3 {
			t.Errorf("%s: expected 3 pulses, got %d", v.Name, v.PulseCount())
		}
	}
	if ADS1232.HasChannelSelection() {
		t.Error("ADS1232 must not have channel selection")
	}
	if !ADS1234.HasChannelSelection() {
		t.Error("ADS1234 must have channel selection")
	}
}

func TestVariantValidate(t *testing.T) {
	wide := ADS1232
	wide.Layout = append(slices.Clone(ADS1232.Layout), speedEncoding)
	if err := wide.Validate(); !IsInvalidConfig(err) {
		t.Errorf("Expected 4 pulses to be rejected, got %v", err)
	}
	broken := ADS1232
	broken.Layout = []FieldEncoding{{Field: FieldSpeed, Width: 2, Patterns: speedEncoding.Patterns}}
	if err := broken.Validate(); !IsInvalidConfig(err) {
		t.Errorf("Expected pattern width mismatch, got %v", err)
	}
	if err := (Variant{}).Validate(); !IsInvalidConfig(err) {
		t.Errorf("Expected nameless variant to be rejected, got %v", err)
	}
}

func TestVariantByName(t *testing.T) {
	v, err := VariantByName("ads1234")
	if err != nil {
		t.Fatalf("VariantByName failed: %v", err)
	}
	if v.Name != "ADS1234" {
		t.Errorf("Expected ADS1234, got %s", v.Name)
	}
	if _, err := VariantByName("ADS1256"); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}

func TestParse(t *testing.T) {
	if g, err := ParseGain("64"); err != nil || g != Gain64 {
		t.Errorf("ParseGain: %v %v", g, err)
	}
	if _, err := ParseGain("3"); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid gain, got %v", err)
	}
	if s, err := ParseSpeed("80"); err != nil || s != SpeedFast {
		t.Errorf("ParseSpeed: %v %v", s, err)
	}
	if c, err := ParseChannel("AIN4"); err != nil || c != AIN4 {
		t.Errorf("ParseChannel: %v %v", c, err)
	}
	cfg := Configuration{Gain: Gain2, Speed: SpeedFast, Channel: AIN1}
	if s := cfg.String(); s != "gain=2 speed=fast channel=ain1" {
		t.Errorf("Unexpected string %q", s)
	}
}

func TestConfigurationJSON(t *testing.T) {
	cfg := Configuration{Gain: Gain64, Speed: SpeedFast, Channel: AIN2}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"gain":64,"speed":"fast","channel":"ain2"}` {
		t.Errorf("Unexpected JSON %s", data)
	}
	var decoded Configuration
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != cfg {
		t.Errorf("Expected %s, got %s", cfg, decoded)
	}
	if err := json.Unmarshal([]byte(`{"gain":3,"speed":"slow"}`), &decoded); !IsInvalidConfig(err) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}
