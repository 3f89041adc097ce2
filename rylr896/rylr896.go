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

// Package rylr896 drives a REYAX RYLR896 LoRa module over its UART AT
// command set. It satisfies loraduplex.Transceiver for hosts that reach the
// radio through a serial port instead of SPI.
package rylr896

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
	"go.bug.st/serial"
)

// MaxPayload is the largest AT+SEND payload the module accepts
const MaxPayload = 240

var (
	// ErrCommandTimeout is returned when the module does not answer a command
	ErrCommandTimeout = errors.New("AT command timeout")
	// ErrCommandRejected is returned for +ERR responses
	ErrCommandRejected = errors.New("AT command rejected")
	// ErrPayloadTooLarge is returned by Send for text over MaxPayload bytes
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrMalformedFrame is returned for +RCV lines that cannot be parsed
	ErrMalformedFrame = errors.New("malformed +RCV frame")
)

// Config holds the serial and network settings
type Config struct {
	Port           string
	BaudRate       int
	CommandTimeout time.Duration
	QueueDepth     int
	Address        uint16
	Destination    uint16
	NetworkID      uint8
}

// DefaultConfig returns 115200 baud, address 1, network 5 and broadcast
// destination 0
func DefaultConfig() Config {
	return Config{
		Port:           "/dev/serial0",
		BaudRate:       115200,
		CommandTimeout: time.Second,
		QueueDepth:     16,
		Address:        1,
		Destination:    0,
		NetworkID:      5,
	}
}

type frame struct {
	data []byte
	rssi int
	snr  int
}

// Device is an RYLR896 behind a serial port
type Device struct {
	port      io.ReadWriteCloser
	responses chan string
	frames    chan frame
	current   *frame
	done      chan struct{}
	cfg       Config
	lastRSSI  int
	lastSNR   int
	cmdMu     sync.Mutex
	startOnce sync.Once
	closeOnce sync.Once
}

// Open opens the serial port described by cfg
func Open(cfg Config) (*Device, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open UART port %s: %w", loraduplex.ErrHardwareUnavailable, cfg.Port, err)
	}
	return NewWithPort(port, cfg), nil
}

// NewWithPort wraps an already open port
func NewWithPort(port io.ReadWriteCloser, cfg Config) *Device {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = time.Second
	}
	return &Device{
		port:      port,
		cfg:       cfg,
		responses: make(chan string, 4),
		frames:    make(chan frame, cfg.QueueDepth),
		done:      make(chan struct{}),
	}
}

func (d *Device) readLoop() {
	defer close(d.done)
	scanner := bufio.NewScanner(d.port)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "+RCV=") {
			f, err := parseRCV(line)
			if err != nil {
				loraduplex.Debugf("rylr896: %v: %q", err, line)
				continue
			}
			select {
			case d.frames <- f:
			default:
				loraduplex.Debugf("rylr896: receive queue full, dropping frame")
			}
			continue
		}
		select {
		case d.responses <- line:
		default:
			loraduplex.Debugf("rylr896: unsolicited %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		loraduplex.Debugf("rylr896: read loop ended: %v", err)
	}
}

// parseRCV parses "+RCV=<address>,<length>,<data>,<rssi>,<snr>". The data
// field may itself contain commas, so it is cut by length.
func parseRCV(line string) (frame, error) {
	rest := strings.TrimPrefix(line, "+RCV=")
	_, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return frame{}, ErrMalformedFrame
	}
	lenField, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return frame{}, ErrMalformedFrame
	}
	n, err := strconv.Atoi(lenField)
	if err != nil || n < 0 || n > len(rest) {
		return frame{}, ErrMalformedFrame
	}
	data, tail := rest[:n], rest[n:]

	fields := strings.Split(strings.TrimPrefix(tail, ","), ",")
	if len(fields) != 2 {
		return frame{}, ErrMalformedFrame
	}
	rssi, err := strconv.Atoi(fields[0])
	if err != nil {
		return frame{}, ErrMalformedFrame
	}
	snr, err := strconv.Atoi(fields[1])
	if err != nil {
		return frame{}, ErrMalformedFrame
	}
	return frame{data: []byte(data), rssi: rssi, snr: snr}, nil
}

func (d *Device) command(cmd string) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.discardStale()
	if _, err := io.WriteString(d.port, cmd+"\r\n"); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}

	timer := time.NewTimer(d.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case resp := <-d.responses:
		if strings.HasPrefix(resp, "+ERR") {
			return fmt.Errorf("%w: %s: %s", ErrCommandRejected, cmd, resp)
		}
		return nil
	case <-d.done:
		return fmt.Errorf("%s: %w", cmd, io.ErrClosedPipe)
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrCommandTimeout, cmd)
	}
}

// discardStale drops replies that arrived after their command timed out.
// Callers hold cmdMu.
func (d *Device) discardStale() {
	for {
		select {
		case resp := <-d.responses:
			loraduplex.Debugf("rylr896: discarding stale reply %q", resp)
		default:
			return
		}
	}
}

// Init starts the reader and configures address and network id
func (d *Device) Init() error {
	d.startOnce.Do(func() { go d.readLoop() })

	for _, cmd := range []string{
		"AT",
		fmt.Sprintf("AT+ADDRESS=%d", d.cfg.Address),
		fmt.Sprintf("AT+NETWORKID=%d", d.cfg.NetworkID),
	} {
		if err := d.command(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Send transmits text to the configured destination
func (d *Device) Send(text string) error {
	if len(text) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(text))
	}
	return d.command(fmt.Sprintf("AT+SEND=%d,%d,%s", d.cfg.Destination, len(text), text))
}

// ReceivedPacket reports whether a frame is waiting
func (d *Device) ReceivedPacket() bool {
	if d.current != nil {
		return true
	}
	select {
	case f := <-d.frames:
		d.current = &f
		return true
	default:
		return false
	}
}

// ReadPayload returns the waiting frame's data
func (d *Device) ReadPayload() ([]byte, error) {
	if d.current == nil {
		return nil, loraduplex.ErrNoPayload
	}
	f := d.current
	d.current = nil
	d.lastRSSI = f.rssi
	d.lastSNR = f.snr
	return f.data, nil
}

// PacketRSSI returns the RSSI reported with the last frame that was read,
// or with the waiting frame if it has not been read yet
func (d *Device) PacketRSSI() int {
	if d.current != nil {
		return d.current.rssi
	}
	return d.lastRSSI
}

// PacketSNR returns the signal-to-noise ratio of the last frame that was read
func (d *Device) PacketSNR() int {
	return d.lastSNR
}

// Close closes the port and waits for the reader to stop if it was started
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if cerr := d.port.Close(); cerr != nil {
			err = fmt.Errorf("UART close failed: %w", cerr)
		}
		started := true
		d.startOnce.Do(func() { started = false })
		if started {
			<-d.done
		}
	})
	return err
}
