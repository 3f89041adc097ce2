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

// Package sx127x drives a Semtech SX1276/77/78/79 in LoRa mode through the
// register access a loraduplex.Controller lends it.
package sx127x

// Registers
const (
	regFifo             = 0x00
	regOpMode           = 0x01
	regFrfMsb           = 0x06
	regFrfMid           = 0x07
	regFrfLsb           = 0x08
	regPaConfig         = 0x09
	regLna              = 0x0C
	regFifoAddrPtr      = 0x0D
	regFifoTxBaseAddr   = 0x0E
	regFifoRxBaseAddr   = 0x0F
	regFifoRxCurrentAdr = 0x10
	regIrqFlags         = 0x12
	regRxNbBytes        = 0x13
	regPktRssiValue     = 0x1A
	regModemConfig1     = 0x1D
	regModemConfig2     = 0x1E
	regPreambleMsb      = 0x20
	regPreambleLsb      = 0x21
	regPayloadLength    = 0x22
	regModemConfig3     = 0x26
	regSyncWord         = 0x39
	regDioMapping1      = 0x40
	regVersion          = 0x42
)

// Operating modes
const (
	modeLongRange    = 0x80
	modeSleep        = 0x00
	modeStandby      = 0x01
	modeTx           = 0x03
	modeRxContinuous = 0x05
)

// IRQ flags
const (
	irqRxTimeout       = 0x80
	irqRxDone          = 0x40
	irqPayloadCrcError = 0x20
	irqValidHeader     = 0x10
	irqTxDone          = 0x08
	irqCadDone         = 0x04
	irqCadDetected     = 0x01
)

const (
	writeFlag    = 0x80
	paBoost      = 0x80
	lnaBoostHF   = 0x03
	agcAutoOn    = 0x04
	chipVersion  = 0x12
	maxPayload   = 255
	oscillatorHz = 32_000_000
	// packets below this frequency use the low-frequency RSSI offset
	highFrequencyHz = 779_000_000
	rssiOffsetHF    = 157
	rssiOffsetLF    = 164
)
