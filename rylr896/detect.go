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

package rylr896

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
	"go.bug.st/serial"
)

// ErrNoModemFound is returned by Detect when no port answers AT
var ErrNoModemFound = errors.New("no RYLR896 found")

// DetectOptions controls port discovery
type DetectOptions struct {
	// Open opens a candidate port; nil opens it with go.bug.st/serial
	Open func(path string) (io.ReadWriteCloser, error)
	// Ports overrides enumeration when non-empty
	Ports []string
	// IgnorePaths are skipped, compared after cleaning
	IgnorePaths []string
	// ProbeTimeout bounds the AT round trip per port
	ProbeTimeout time.Duration
	BaudRate     int
}

// DefaultDetectOptions probes at 115200 baud with a 300 ms budget per port
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		ProbeTimeout: 300 * time.Millisecond,
		BaudRate:     115200,
	}
}

// Detect returns the first serial port whose device answers AT with +OK
func Detect(ctx context.Context, opts DetectOptions) (string, error) {
	ports := opts.Ports
	if len(ports) == 0 {
		var err error
		if ports, err = serial.GetPortsList(); err != nil {
			return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
		}
	}
	if opts.Open == nil {
		baud := opts.BaudRate
		opts.Open = func(path string) (io.ReadWriteCloser, error) {
			//nolint:wrapcheck // wrapped by the caller
			return serial.Open(path, &serial.Mode{BaudRate: baud})
		}
	}

	for _, path := range filterPorts(ports, opts.IgnorePaths) {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("detection cancelled: %w", err)
		}
		if err := probe(path, opts); err != nil {
			loraduplex.Debugf("rylr896: %s: %v", path, err)
			continue
		}
		loraduplex.Debugf("rylr896: found modem on %s", path)
		return path, nil
	}
	return "", ErrNoModemFound
}

// filterPorts drops ignored paths and ports that cannot host a UART modem
func filterPorts(ports, ignore []string) []string {
	ignored := make([]string, 0, len(ignore))
	for _, p := range ignore {
		ignored = append(ignored, filepath.Clean(p))
	}

	var out []string
	for _, p := range ports {
		if slices.Contains(ignored, filepath.Clean(p)) {
			continue
		}
		// Bluetooth RFCOMM and virtual consoles never carry the module
		base := filepath.Base(p)
		if strings.HasPrefix(base, "rfcomm") || strings.HasPrefix(base, "tty.Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func probe(path string, opts DetectOptions) error {
	port, err := opts.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Port = path
	cfg.CommandTimeout = opts.ProbeTimeout
	dev := NewWithPort(port, cfg)
	dev.startOnce.Do(func() { go dev.readLoop() })
	defer func() { _ = dev.Close() }()

	return dev.command("AT")
}
