// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package duplex

import (
	"fmt"
	"strings"
	"time"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
)

// Role selects what the loop does with received text
type Role int

const (
	// RoleSender prints received text only
	RoleSender Role = iota
	// RoleReceiver additionally appends received text to the sink
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole parses "sender" or "receiver"
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sender", "send", "tx":
		return RoleSender, nil
	case "receiver", "receive", "rx":
		return RoleReceiver, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", loraduplex.ErrInvalidConfig, s)
	}
}

// Send period in milliseconds: base plus a time-derived offset below range
const (
	DefaultIntervalBase  int64 = 2000
	DefaultIntervalRange int64 = 2000
)

// DefaultLogPath is where the receiver role appends received lines
const DefaultLogPath = "/home/R2B"

// Config holds the duplex loop configuration
type Config struct {
	RoleTag        string
	LogPath        string
	ActivityBlink  loraduplex.BlinkPattern
	IntervalBase   int64
	IntervalRange  int64
	Role           Role
	AsyncIndicator bool
}

// DefaultConfig returns the default loop configuration
func DefaultConfig() *Config {
	return &Config{
		Role:          RoleSender,
		RoleTag:       "RPi",
		IntervalBase:  DefaultIntervalBase,
		IntervalRange: DefaultIntervalRange,
		LogPath:       DefaultLogPath,
		ActivityBlink: loraduplex.BlinkPattern{
			Times: 1,
			On:    loraduplex.Duration(100 * time.Millisecond),
			Off:   loraduplex.Duration(100 * time.Millisecond),
		},
	}
}

// Validate rejects interval settings that would break the jitter formula
func (c *Config) Validate() error {
	if c.IntervalRange <= 0 {
		return fmt.Errorf("%w: interval range must be positive", loraduplex.ErrInvalidConfig)
	}
	if c.IntervalBase < 0 {
		return fmt.Errorf("%w: interval base must not be negative", loraduplex.ErrInvalidConfig)
	}
	return nil
}
