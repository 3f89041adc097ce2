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

package loraduplex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads and writes JSON as "50ms"-style text
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(time.Duration(d).String())
	if err != nil {
		return nil, fmt.Errorf("marshal duration: %w", err)
	}
	return b, nil
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: duration %q: %w", ErrInvalidConfig, s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("%w: duration %s", ErrInvalidConfig, data)
	}
	*d = Duration(ns)
	return nil
}

// Config is the fixed hardware configuration of a Controller
type Config struct {
	StartupBlink      BlinkPattern   `json:"startup_blink"`
	SupportedLines    []LineID       `json:"supported_lines"`
	SPI               SPIConfig      `json:"spi"`
	Transceiver       PinAssignments `json:"transceiver"`
	IndicatorLine     LineID         `json:"indicator_line"`
	ResetLine         LineID         `json:"reset_line"`
	ResetLow          Duration       `json:"reset_low"`
	ResetHigh         Duration       `json:"reset_high"`
	IndicatorHighIsOn bool           `json:"indicator_high_is_on"`
}

// Raspberry Pi defaults
const (
	// OnBoardLEDLine is the Pi's on-board activity LED
	OnBoardLEDLine LineID = 47
	// DefaultResetLine drives the transceiver's reset input
	DefaultResetLine LineID = 22
	// DefaultSPISpeedHz is the bus clock
	DefaultSPISpeedHz = 10_000_000
)

// DefaultSupportedLines returns the header GPIOs 2..27 plus the on-board LED
func DefaultSupportedLines() []LineID {
	lines := make([]LineID, 0, 27)
	for l := LineID(2); l <= 27; l++ {
		lines = append(lines, l)
	}
	return append(lines, OnBoardLEDLine)
}

// DefaultConfig returns the configuration of a Raspberry Pi with an SX127x
// on SPI0.0
func DefaultConfig() *Config {
	return &Config{
		IndicatorLine:     OnBoardLEDLine,
		IndicatorHighIsOn: true,
		ResetLine:         DefaultResetLine,
		ResetLow:          Duration(50 * time.Millisecond),
		ResetHigh:         Duration(50 * time.Millisecond),
		StartupBlink: BlinkPattern{
			Times: 2,
			On:    Duration(500 * time.Millisecond),
			Off:   Duration(500 * time.Millisecond),
		},
		SPI: SPIConfig{
			Bus:     0,
			Device:  0,
			SpeedHz: DefaultSPISpeedHz,
			Mode:    0,
		},
		SupportedLines: DefaultSupportedLines(),
		Transceiver:    DefaultPinAssignments(),
	}
}

// Validate checks the configuration for values no hardware can satisfy
func (c *Config) Validate() error {
	switch {
	case c.SPI.SpeedHz <= 0:
		return fmt.Errorf("%w: spi speed must be positive", ErrInvalidConfig)
	case c.SPI.Mode < 0 || c.SPI.Mode > 3:
		return fmt.Errorf("%w: spi mode %d", ErrInvalidConfig, c.SPI.Mode)
	case c.ResetLow < 0 || c.ResetHigh < 0:
		return fmt.Errorf("%w: negative reset duration", ErrInvalidConfig)
	case c.StartupBlink.Times < 0 || c.StartupBlink.On < 0 || c.StartupBlink.Off < 0:
		return fmt.Errorf("%w: negative startup blink", ErrInvalidConfig)
	case c.IndicatorLine == NoLine || c.ResetLine == NoLine:
		return fmt.Errorf("%w: indicator and reset lines are required", ErrInvalidConfig)
	}
	return c.Transceiver.Validate()
}

// Validate checks that the required lines are assigned
func (a PinAssignments) Validate() error {
	if a.SS == NoLine {
		return fmt.Errorf("%w: ss line is required", ErrInvalidConfig)
	}
	if a.RxDone == NoLine {
		return fmt.Errorf("%w: rx_done line is required", ErrInvalidConfig)
	}
	return nil
}

// ConfigPaths lists where LoadConfig looks for a configuration file
func ConfigPaths() []string {
	return []string{
		"loraduplex.json",
		".loraduplex.json",
		filepath.Join(os.Getenv("HOME"), ".config", "loraduplex", "config.json"),
		"/etc/loraduplex/config.json",
	}
}

// LoadConfig starts from DefaultConfig, overlays the first configuration file
// found in ConfigPaths, then applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range ConfigPaths() {
		if err := cfg.overlayFile(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		Debugf("loaded configuration from %s", path)
		break
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile overlays one file on DefaultConfig and applies environment
// overrides
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // configuration path chosen by the operator
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		dst *int
		key string
	}{
		{key: "LORADUPLEX_SPI_BUS", dst: &c.SPI.Bus},
		{key: "LORADUPLEX_SPI_DEVICE", dst: &c.SPI.Device},
		{key: "LORADUPLEX_SS_PIN", dst: (*int)(&c.Transceiver.SS)},
		{key: "LORADUPLEX_RESET_PIN", dst: (*int)(&c.ResetLine)},
		{key: "LORADUPLEX_LED_PIN", dst: (*int)(&c.IndicatorLine)},
	}
	for _, o := range overrides {
		raw := os.Getenv(o.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, o.key, raw)
		}
		*o.dst = v
	}
	return nil
}
