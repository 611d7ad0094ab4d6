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
	"crypto/sha1"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// HostID returns a short stable identifier of this host, derived from
// the machine ID or the hardware addresses of the network interfaces.
func HostID() (string, error) {
	if content, err := os.ReadFile("/etc/machine-id"); err == nil {
		return hashID([]byte(strings.TrimSpace(string(content)))), nil
	}
	ifs, err := net.Interfaces()
	if err != nil {
		return "", errors.WithStack(err)
	}
	list := make([]string, 0, len(ifs))
	for _, v := range ifs {
		if v.Flags&net.FlagUp != 0 && v.Flags&net.FlagLoopback == 0 {
			if h := v.HardwareAddr.String(); h != "" {
				list = append(list, h)
			}
		}
	}
	sort.Strings(list)
	list = append(list, runtime.GOOS, runtime.GOARCH)
	return hashID([]byte(strings.Join(list, ","))), nil
}

func hashID(data []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(data))[:10]
}
