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

package environment

import (
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Bridge type names.
const (
	BridgeRaspberryPi = "rpi"
	BridgeOrangePi    = "opz"
	BridgeVirtual     = "virtual"
)

// AutoDetectBridgeType detects the default bridge type based on the environment.
// Hosts that are not ARM boards get the virtual bridge.
func AutoDetectBridgeType(log zerolog.Logger) string {
	return detectBridgeType(log, runtime.GOARCH, unix.Uname)
}

func detectBridgeType(log zerolog.Logger, arch string, uname func(*unix.Utsname) error) string {
	if arch != "arm" && arch != "arm64" {
		log.Debug().Str("arch", arch).Msg("No GPIO board architecture, using virtual bridge")
		return BridgeVirtual
	}
	var name unix.Utsname
	if err := uname(&name); err != nil {
		log.Warn().Err(err).Msg("Uname failed, assuming Raspberry Pi")
		return BridgeRaspberryPi
	}
	release := strings.TrimRight(string(name.Release[:]), "\x00")
	if strings.Contains(release, "sunxi") {
		return BridgeOrangePi
	}
	return BridgeRaspberryPi
}
