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
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
)

// ErrNoPayload is returned by Transceiver.ReadPayload with nothing queued
var ErrNoPayload = errors.New("mock: no packet pending")

// Transceiver is a scripted radio. Queued packets are reported one per
// ReceivedPacket call that finds the previous one consumed.
type Transceiver struct {
	InitErr     error
	SendErr     error
	ReadErr     error
	Sent        []string
	queue       [][]byte
	RSSI        int
	InitCalls   int
	PollCalls   int
	ReadCalls   int
	RSSICalls   int
	pending     bool
	pendingData []byte
}

// Queue adds packets to be received
func (t *Transceiver) Queue(payloads ...[]byte) {
	t.queue = append(t.queue, payloads...)
}

// Init implements loraduplex.Transceiver
func (t *Transceiver) Init() error {
	t.InitCalls++
	return t.InitErr
}

// Send implements loraduplex.Transceiver
func (t *Transceiver) Send(text string) error {
	t.Sent = append(t.Sent, text)
	return t.SendErr
}

// ReceivedPacket implements loraduplex.Transceiver
func (t *Transceiver) ReceivedPacket() bool {
	t.PollCalls++
	if t.pending {
		return true
	}
	if len(t.queue) == 0 {
		return false
	}
	t.pendingData, t.queue = t.queue[0], t.queue[1:]
	t.pending = true
	return true
}

// ReadPayload implements loraduplex.Transceiver
func (t *Transceiver) ReadPayload() ([]byte, error) {
	t.ReadCalls++
	if t.ReadErr != nil {
		t.pending = false
		return nil, t.ReadErr
	}
	if !t.pending {
		return nil, ErrNoPayload
	}
	t.pending = false
	return t.pendingData, nil
}

// PacketRSSI implements loraduplex.Transceiver
func (t *Transceiver) PacketRSSI() int {
	t.RSSICalls++
	return t.RSSI
}

// Blink is one recorded indicator request
type Blink struct {
	Times int
	On    time.Duration
	Off   time.Duration
}

// Indicator records blink requests
type Indicator struct {
	Blinks []Blink
	mu     syncutil.Mutex
}

// Blink implements loraduplex.Indicator
func (i *Indicator) Blink(times int, on, off time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Blinks = append(i.Blinks, Blink{Times: times, On: on, Off: off})
}

// Recorded returns a copy of the blinks seen so far
func (i *Indicator) Recorded() []Blink {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Blink(nil), i.Blinks...)
}

// Sink records written lines
type Sink struct {
	Err   error
	Lines []string
}

// WriteLine implements duplex.Sink
func (s *Sink) WriteLine(line string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Lines = append(s.Lines, line)
	return nil
}
