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

import "time"

// Transceiver is the radio driver a Controller registers and a duplex loop
// drives. Implementations receive their hardware access through a
// HardwareContext at construction.
type Transceiver interface {
	// Init performs one-time hardware bring-up
	Init() error

	// Send transmits text as one packet. There is no acknowledgement.
	Send(text string) error

	// ReceivedPacket reports, without blocking, whether an unread packet is buffered
	ReceivedPacket() bool

	// ReadPayload returns the buffered packet, or ErrNoPayload if none is pending
	ReadPayload() ([]byte, error)

	// PacketRSSI returns the signal strength of the most recent packet in dBm
	PacketRSSI() int
}

// HardwareContext is what a Controller lends to a transceiver it registers
type HardwareContext interface {
	// Name is the key the transceiver is registered under
	Name() string

	// Transfer performs one register exchange with the transceiver's SS line asserted
	Transfer(address, value byte) ([]byte, error)

	// Blink flashes the status indicator, blocking for times*(on+off)
	Blink(times int, on, off time.Duration)

	// Pins returns the lines bound to the transceiver
	Pins() TransceiverPins
}

// TransceiverFactory builds a driver around the hardware it is given
type TransceiverFactory func(hw HardwareContext) (Transceiver, error)

// PinAssignments lists the lines wired to one transceiver. SS and RxDone are
// required; the rest may be NoLine.
type PinAssignments struct {
	SS              LineID `json:"ss"`
	RxDone          LineID `json:"rx_done"`
	RxTimeout       LineID `json:"rx_timeout"`
	ValidHeader     LineID `json:"valid_header"`
	CadDone         LineID `json:"cad_done"`
	CadDetected     LineID `json:"cad_detected"`
	PayloadCrcError LineID `json:"payload_crc_error"`
}

// DefaultPinAssignments returns the wiring of an SX127x board on a Raspberry
// Pi: SS on GPIO8 (CE0), DIO0 on GPIO5, DIO1 on GPIO6.
func DefaultPinAssignments() PinAssignments {
	return PinAssignments{
		SS:              8,
		RxDone:          5,
		RxTimeout:       6,
		ValidHeader:     NoLine,
		CadDone:         NoLine,
		CadDetected:     NoLine,
		PayloadCrcError: NoLine,
	}
}

// interruptLines returns the optional interrupt-capable lines in DIO order
func (a PinAssignments) interruptLines() [6]LineID {
	return [6]LineID{a.RxDone, a.RxTimeout, a.ValidHeader, a.CadDone, a.CadDetected, a.PayloadCrcError}
}

// TransceiverPins are the acquired lines of one transceiver. Unwired optional
// lines hold an Unbound pin, never nil.
type TransceiverPins struct {
	SS              *Pin
	RxDone          *Pin
	RxTimeout       *Pin
	ValidHeader     *Pin
	CadDone         *Pin
	CadDetected     *Pin
	PayloadCrcError *Pin
}

func (tp *TransceiverPins) setInterrupt(i int, p *Pin) {
	switch i {
	case 0:
		tp.RxDone = p
	case 1:
		tp.RxTimeout = p
	case 2:
		tp.ValidHeader = p
	case 3:
		tp.CadDone = p
	case 4:
		tp.CadDetected = p
	case 5:
		tp.PayloadCrcError = p
	}
}

func (tp TransceiverPins) all() []*Pin {
	return []*Pin{tp.SS, tp.RxDone, tp.RxTimeout, tp.ValidHeader, tp.CadDone, tp.CadDetected, tp.PayloadCrcError}
}

func (tp TransceiverPins) release() error {
	var firstErr error
	for _, p := range tp.all() {
		if p == nil {
			continue
		}
		if err := p.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// hardwareContext binds the shared bridge and indicator to one transceiver
type hardwareContext struct {
	bridge    *SpiBridge
	indicator Indicator
	name      string
	pins      TransceiverPins
}

func (h *hardwareContext) Name() string {
	return h.name
}

func (h *hardwareContext) Transfer(address, value byte) ([]byte, error) {
	return h.bridge.Transfer(h.pins.SS, address, value)
}

func (h *hardwareContext) Blink(times int, on, off time.Duration) {
	h.indicator.Blink(times, on, off)
}

func (h *hardwareContext) Pins() TransceiverPins {
	return h.pins
}
