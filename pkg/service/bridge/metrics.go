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

package bridge

import (
	"github.com/adom-inc/ads123x/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of line operations
	lineOperationCounters = metrics.MustRegisterCounterVec(subSystem,
		"line_operations_total",
		"Total number of read/write operations per line",
		"line")
	// Total number of failed line operations
	lineErrorCounters = metrics.MustRegisterCounterVec(subSystem,
		"line_errors_total",
		"Total number of failed read/write operations per line",
		"line")
	// Total number of edge waits that timed out
	edgeTimeoutCounters = metrics.MustRegisterCounterVec(subSystem,
		"edge_timeouts_total",
		"Total number of edge waits that timed out per line",
		"line")
)
