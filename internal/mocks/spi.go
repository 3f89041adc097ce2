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

package mocks

import (
	"errors"
	"sync/atomic"

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var errPortClosed = errors.New("port is closed")

// SPIConn implements spi.Conn. TxFunc, when set, produces the read bytes.
type SPIConn struct {
	TxFunc   func(w, r []byte) error
	writes   [][]byte
	inFlight atomic.Int32
	overlaps atomic.Int32
	mu       syncutil.Mutex
	closed   bool
}

// Tx implements spi.Conn
//
//nolint:varnamelen // interface parameter names
func (c *SPIConn) Tx(w, r []byte) error {
	if c.inFlight.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	defer c.inFlight.Add(-1)

	c.mu.Lock()
	closed := c.closed
	c.writes = append(c.writes, append([]byte(nil), w...))
	fn := c.TxFunc
	c.mu.Unlock()

	if closed {
		return errPortClosed
	}
	if fn != nil {
		return fn(w, r)
	}
	return nil
}

// Duplex implements conn.Conn
func (*SPIConn) Duplex() conn.Duplex {
	return conn.Full
}

// String returns the connection name
func (*SPIConn) String() string {
	return "mock://spi"
}

// TxPackets implements spi.Conn
func (c *SPIConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Writes returns every buffer written so far
func (c *SPIConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Overlaps returns how many Tx calls started while another was running
func (c *SPIConn) Overlaps() int {
	return int(c.overlaps.Load())
}

// SPIPort implements spi.PortCloser
type SPIPort struct {
	ConnectErr error
	Conn       *SPIConn
	Freq       physic.Frequency
	Mode       spi.Mode
	Bits       int
	closeCalls atomic.Int32
}

// NewSPIPort creates a port with a fresh connection
func NewSPIPort() *SPIPort {
	return &SPIPort{Conn: &SPIConn{}}
}

// Connect implements spi.Port
func (p *SPIPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	p.Freq, p.Mode, p.Bits = f, mode, bits
	return p.Conn, nil
}

// Close implements io.Closer
func (p *SPIPort) Close() error {
	p.closeCalls.Add(1)
	p.Conn.mu.Lock()
	p.Conn.closed = true
	p.Conn.mu.Unlock()
	return nil
}

// CloseCalls returns how many times Close ran
func (p *SPIPort) CloseCalls() int {
	return int(p.closeCalls.Load())
}

// String returns the port name
func (*SPIPort) String() string {
	return "mock://spi"
}

// LimitSpeed implements spi.Port
func (*SPIPort) LimitSpeed(_ physic.Frequency) error {
	return nil
}

var (
	_ spi.Conn       = (*SPIConn)(nil)
	_ spi.PortCloser = (*SPIPort)(nil)
)
