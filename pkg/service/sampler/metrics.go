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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adom-inc/ads123x/pkg/metrics"
)

const (
	subSystem = "sampler"
)

var (
	// Total number of conversions read
	readsTotal = metrics.MustRegisterCounter(subSystem,
		"reads_total",
		"Total number of conversions read")
	// Total number of failed reads per error kind
	readErrorCounters = metrics.MustRegisterCounterVec(subSystem,
		"read_errors_total",
		"Total number of failed reads per error kind",
		"kind")
	// Value of the last conversion
	lastValueGauge = metrics.MustRegisterGauge(subSystem,
		"last_value",
		"Raw value of the last conversion")
	// Duration of a read, including the wait for ready
	readDurationHistogram = metrics.MustRegisterHistogram(subSystem,
		"read_duration_seconds",
		"Duration of a read, including the wait for ready",
		prometheus.ExponentialBuckets(0.001, 2, 12))
	// Total number of accepted configuration changes
	configChangesTotal = metrics.MustRegisterCounter(subSystem,
		"config_changes_total",
		"Total number of accepted configuration changes")
	// Power state of the converter (1 = powered)
	poweredGauge = metrics.MustRegisterGauge(subSystem,
		"powered",
		"Power state of the converter (1 = powered)")
)
