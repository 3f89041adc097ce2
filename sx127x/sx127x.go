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

package sx127x

import (
	"errors"
	"fmt"
	"time"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
)

// ErrUnsupportedChip is returned by Init when the version register does not
// identify an SX127x
var ErrUnsupportedChip = errors.New("unsupported chip version")

// ErrPayloadTooLarge is returned by Send for text over 255 bytes
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrTxTimeout is returned when TxDone is not raised in time
var ErrTxTimeout = errors.New("transmit timeout")

// Config holds the modem settings
type Config struct {
	FrequencyHz     uint64
	TxTimeout       time.Duration
	TxPowerDBm      int
	SpreadingFactor int
	BandwidthCode   byte
	CodingRate      int
	PreambleLength  uint16
	SyncWord        byte
	CRC             bool
}

// DefaultConfig returns 433 MHz, SF7, 125 kHz, 4/5, preamble 8, sync 0x12,
// 14 dBm on PA_BOOST with CRC enabled
func DefaultConfig() Config {
	return Config{
		FrequencyHz:     433_000_000,
		TxPowerDBm:      14,
		SpreadingFactor: 7,
		BandwidthCode:   0x07,
		CodingRate:      5,
		PreambleLength:  8,
		SyncWord:        0x12,
		CRC:             true,
		TxTimeout:       2 * time.Second,
	}
}

// Device is an SX127x in LoRa mode
type Device struct {
	hw      loraduplex.HardwareContext
	now     func() time.Time
	cfg     Config
	pending bool
}

// New returns a factory for loraduplex.Controller.AddTransceiver
func New(cfg Config) loraduplex.TransceiverFactory {
	return func(hw loraduplex.HardwareContext) (loraduplex.Transceiver, error) {
		return NewDevice(hw, cfg), nil
	}
}

// NewDevice wraps hw without touching the chip
func NewDevice(hw loraduplex.HardwareContext, cfg Config) *Device {
	return &Device{hw: hw, cfg: cfg, now: time.Now}
}

func (d *Device) read(reg byte) (byte, error) {
	resp, err := d.hw.Transfer(reg&^writeFlag, 0x00)
	if err != nil {
		return 0, fmt.Errorf("read 0x%02X: %w", reg, err)
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("read 0x%02X: empty response", reg)
	}
	return resp[0], nil
}

func (d *Device) write(reg, value byte) error {
	if _, err := d.hw.Transfer(reg|writeFlag, value); err != nil {
		return fmt.Errorf("write 0x%02X: %w", reg, err)
	}
	return nil
}

type regWrite struct {
	reg   byte
	value byte
}

func (d *Device) writeAll(writes []regWrite) error {
	for _, w := range writes {
		if err := d.write(w.reg, w.value); err != nil {
			return err
		}
	}
	return nil
}

// Init checks the chip version and configures LoRa mode, then starts
// continuous receive
func (d *Device) Init() error {
	version, err := d.read(regVersion)
	if err != nil {
		return err
	}
	if version != chipVersion {
		return fmt.Errorf("%w: 0x%02X", ErrUnsupportedChip, version)
	}

	lna, err := d.read(regLna)
	if err != nil {
		return err
	}

	frf := (d.cfg.FrequencyHz << 19) / oscillatorHz
	modem2 := byte(d.cfg.SpreadingFactor<<4) & 0xF0
	if d.cfg.CRC {
		modem2 |= 0x04
	}

	err = d.writeAll([]regWrite{
		{regOpMode, modeLongRange | modeSleep},
		{regFrfMsb, byte(frf >> 16)},
		{regFrfMid, byte(frf >> 8)},
		{regFrfLsb, byte(frf)},
		{regFifoTxBaseAddr, 0x00},
		{regFifoRxBaseAddr, 0x00},
		{regLna, lna | lnaBoostHF},
		{regModemConfig1, d.cfg.BandwidthCode<<4 | byte((d.cfg.CodingRate-4)<<1)},
		{regModemConfig2, modem2},
		{regModemConfig3, agcAutoOn},
		{regPreambleMsb, byte(d.cfg.PreambleLength >> 8)},
		{regPreambleLsb, byte(d.cfg.PreambleLength)},
		{regSyncWord, d.cfg.SyncWord},
		{regPaConfig, paBoost | byte(clamp(d.cfg.TxPowerDBm, 2, 17)-2)},
		{regDioMapping1, 0x00},
		{regOpMode, modeLongRange | modeStandby},
	})
	if err != nil {
		return err
	}

	loraduplex.Debugf("%s: sx127x ready at %d Hz", d.hw.Name(), d.cfg.FrequencyHz)
	return d.startReceive()
}

func (d *Device) startReceive() error {
	return d.write(regOpMode, modeLongRange|modeRxContinuous)
}

// Send transmits text and returns to continuous receive. It waits for
// TxDone for at most Config.TxTimeout.
func (d *Device) Send(text string) error {
	if len(text) > maxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(text))
	}

	writes := []regWrite{
		{regOpMode, modeLongRange | modeStandby},
		{regFifoAddrPtr, 0x00},
	}
	for i := 0; i < len(text); i++ {
		writes = append(writes, regWrite{regFifo, text[i]})
	}
	writes = append(writes,
		regWrite{regPayloadLength, byte(len(text))},
		regWrite{regOpMode, modeLongRange | modeTx},
	)
	if err := d.writeAll(writes); err != nil {
		return err
	}

	if err := d.waitTxDone(); err != nil {
		_ = d.startReceive()
		return err
	}
	return d.startReceive()
}

func (d *Device) waitTxDone() error {
	deadline := d.now().Add(d.cfg.TxTimeout)
	for {
		flags, err := d.read(regIrqFlags)
		if err != nil {
			return err
		}
		if flags&irqTxDone != 0 {
			return d.write(regIrqFlags, irqTxDone)
		}
		if !d.now().Before(deadline) {
			return ErrTxTimeout
		}
	}
}

// ReceivedPacket polls the IRQ flags. Packets failing the payload CRC are
// discarded.
func (d *Device) ReceivedPacket() bool {
	if d.pending {
		return true
	}

	flags, err := d.read(regIrqFlags)
	if err != nil {
		loraduplex.Debugf("%s: %v", d.hw.Name(), err)
		return false
	}
	if flags == 0 {
		return false
	}
	if err := d.write(regIrqFlags, flags); err != nil {
		loraduplex.Debugf("%s: %v", d.hw.Name(), err)
	}

	if flags&irqRxDone == 0 {
		return false
	}
	if flags&irqPayloadCrcError != 0 {
		loraduplex.Debugf("%s: dropping packet with CRC error", d.hw.Name())
		return false
	}
	d.pending = true
	return true
}

// ReadPayload reads the pending packet out of the FIFO
func (d *Device) ReadPayload() ([]byte, error) {
	if !d.pending {
		return nil, loraduplex.ErrNoPayload
	}
	d.pending = false

	addr, err := d.read(regFifoRxCurrentAdr)
	if err != nil {
		return nil, err
	}
	n, err := d.read(regRxNbBytes)
	if err != nil {
		return nil, err
	}
	if err := d.write(regFifoAddrPtr, addr); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	for i := range payload {
		if payload[i], err = d.read(regFifo); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// PacketRSSI returns the RSSI of the last packet in dBm
func (d *Device) PacketRSSI() int {
	raw, err := d.read(regPktRssiValue)
	if err != nil {
		loraduplex.Debugf("%s: %v", d.hw.Name(), err)
		return 0
	}
	if d.cfg.FrequencyHz < highFrequencyHz {
		return int(raw) - rssiOffsetLF
	}
	return int(raw) - rssiOffsetHF
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
