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
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// hostInit loads the periph drivers once per process
var hostInit = sync.OnceValue(func() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}
	return nil
})

// PeriphLineResolver resolves lines through the periph GPIO registry using
// BCM numbering ("GPIO<n>").
func PeriphLineResolver(line LineID) (gpio.PinIO, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHardwareUnavailable, err)
	}
	p := gpioreg.ByName(line.String())
	if p == nil {
		return nil, fmt.Errorf("%w: %s not found in gpio registry", ErrInvalidLine, line)
	}
	return p, nil
}

// PeriphPortOpener opens an SPI port through the periph SPI registry, e.g.
// "SPI0.0" for /dev/spidev0.0.
func PeriphPortOpener(name string) (spi.PortCloser, error) {
	if err := hostInit(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", name, err)
	}
	return port, nil
}
