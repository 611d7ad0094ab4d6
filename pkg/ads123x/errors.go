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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// TimeoutError is returned when the ready signal did not arrive in time.
	TimeoutError = errors.New("timeout")
	IsTimeout    = isErrorFunc(TimeoutError)
	// TimingViolationError is returned when a clock pulse exceeded the chip maximum.
	TimingViolationError = errors.New("timing violation")
	IsTimingViolation    = isErrorFunc(TimingViolationError)
	// BusyError is returned when a read is requested while another is in flight.
	BusyError = errors.New("busy")
	IsBusy    = isErrorFunc(BusyError)
	// NotPoweredError is returned for operations on a powered down chip.
	NotPoweredError = errors.New("not powered")
	IsNotPowered    = isErrorFunc(NotPoweredError)
	// InvalidConfigError is returned for configurations the variant does not support.
	InvalidConfigError = errors.New("invalid configuration")
	IsInvalidConfig    = isErrorFunc(InvalidConfigError)
	// HardwareFaultError is the cause reported for every failed line access.
	HardwareFaultError = errors.New("hardware fault")

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

// HardwareFault wraps an error returned by a line capability.
type HardwareFault struct {
	// Line is the name of the failing line (clock, data, ready, ...).
	Line string
	Err  error
}

// Error implements error.
func (e *HardwareFault) Error() string {
	return fmt.Sprintf("%s: %s line: %v", HardwareFaultError, e.Line, e.Err)
}

// Unwrap returns the error of the line capability.
func (e *HardwareFault) Unwrap() error { return e.Err }

// Is reports HardwareFaultError as a match.
func (e *HardwareFault) Is(target error) bool { return target == HardwareFaultError }

// IsHardwareFault returns true when err is (or wraps) a failed line access.
func IsHardwareFault(err error) bool {
	var hf *HardwareFault
	return errors.As(err, &hf)
}

// fault wraps a line error, nil stays nil.
func fault(line string, err error) error {
	if err == nil {
		return nil
	}
	return maskAny(&HardwareFault{Line: line, Err: err})
}
