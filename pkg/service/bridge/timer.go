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
	"runtime"
	"time"

	"github.com/adom-inc/ads123x/pkg/ads123x"
)

const (
	// Delays below this are busy-waited, the scheduler cannot sleep
	// that briefly. Ready polling must stay above it.
	spinThreshold = 200 * time.Microsecond
)

// HostTimer is a monotonic time source based on the host clock.
type HostTimer struct {
	start time.Time
}

var _ ads123x.Timer = &HostTimer{}

// NewHostTimer creates a timer that counts from now.
func NewHostTimer() *HostTimer {
	return &HostTimer{start: time.Now()}
}

// Now returns the time since the timer was created.
func (t *HostTimer) Now() time.Duration {
	return time.Since(t.start)
}

// Delay waits for at least the given duration.
func (t *HostTimer) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		if d > 10*time.Microsecond {
			runtime.Gosched()
		}
	}
}
