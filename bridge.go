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

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// SPIConfig describes the bus the transceivers share
type SPIConfig struct {
	Bus      int   `json:"bus"`
	Device   int   `json:"device"`
	SpeedHz  int64 `json:"speed_hz"`
	Mode     int   `json:"mode"`
	LSBFirst bool  `json:"lsb_first"`
	// NoCS leaves chip-select entirely to the GPIO SS line
	NoCS bool `json:"no_cs"`
}

// PortName returns the periph registry name, e.g. "SPI0.0"
func (c SPIConfig) PortName() string {
	return fmt.Sprintf("SPI%d.%d", c.Bus, c.Device)
}

func (c SPIConfig) spiMode() spi.Mode {
	mode := spi.Mode(c.Mode & 0x3)
	if c.LSBFirst {
		mode |= spi.LSBFirst
	}
	if c.NoCS {
		mode |= spi.NoCS
	}
	return mode
}

// PortOpener opens an SPI port by registry name
type PortOpener func(name string) (spi.PortCloser, error)

// SpiBridge performs chip-select gated two-byte register exchanges.
// Transfers on one bridge never overlap.
type SpiBridge struct {
	port   spi.PortCloser
	conn   spi.Conn
	trace  *TraceBuffer
	name   string
	mu     syncutil.Mutex
	closed bool
}

// OpenBridge claims the bus and device described by cfg. Failures wrap
// ErrDeviceUnavailable.
func OpenBridge(cfg SPIConfig, open PortOpener) (*SpiBridge, error) {
	if open == nil {
		open = PeriphPortOpener
	}
	name := cfg.PortName()

	port, err := open(name)
	if err != nil {
		return nil, NewBusError("open", name, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), ErrorTypePermanent)
	}

	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, cfg.spiMode(), 8)
	if err != nil {
		_ = port.Close()
		return nil, NewBusError("connect", name, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err), ErrorTypePermanent)
	}

	Debugf("opened %s at %d Hz, mode %d", name, cfg.SpeedHz, cfg.Mode)
	return &SpiBridge{
		port:  port,
		conn:  conn,
		name:  name,
		trace: NewTraceBuffer(name, 16),
	}, nil
}

// Name returns the bus name
func (b *SpiBridge) Name() string {
	return b.name
}

// Transfer drives ss low, clocks out [address, value], drives ss high and
// returns the second byte clocked in. ss is deasserted on every call, also
// when the exchange fails or panics.
func (b *SpiBridge) Transfer(ss *Pin, address, value byte) (resp []byte, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if lowErr := ss.SetLow(); lowErr != nil {
		err = lowErr
	}
	defer func() {
		if highErr := ss.SetHigh(); highErr != nil && err == nil {
			resp, err = nil, highErr
		}
	}()
	if err != nil {
		return nil, err
	}

	return b.exchange(address, value)
}

func (b *SpiBridge) exchange(address, value byte) ([]byte, error) {
	if b.closed {
		return nil, NewBusError("transfer", b.name, ErrBridgeClosed, ErrorTypePermanent)
	}

	w := []byte{address, value}
	r := make([]byte, len(w))
	b.trace.RecordTX(w, fmt.Sprintf("reg 0x%02X", address&0x7F))
	if err := b.conn.Tx(w, r); err != nil {
		return nil, b.trace.WrapError(
			NewBusError("transfer", b.name, fmt.Errorf("%w: %w", ErrTransferFailed, err), ErrorTypeTransient))
	}
	b.trace.RecordRX(r, "")
	return []byte{r[1]}, nil
}

// Close releases the bus. Closing twice is a no-op.
func (b *SpiBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}
