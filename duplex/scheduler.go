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

package duplex

import (
	"context"
	"fmt"
	"time"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
)

// Clock returns the current time in milliseconds
type Clock func() int64

// MonotonicClock returns a millisecond clock anchored at the wall time of the
// call and advanced by the monotonic clock
func MonotonicClock() Clock {
	start := time.Now()
	base := start.UnixMilli()
	return func() int64 {
		return base + time.Since(start).Milliseconds()
	}
}

// Packet describes one received packet
type Packet struct {
	Err     error
	Text    string
	Payload []byte
	RSSI    int
}

// Scheduler interleaves timed sends with receive polling on one transceiver.
// All of its state is touched only by the goroutine running it.
type Scheduler struct {
	transceiver loraduplex.Transceiver
	indicator   loraduplex.Indicator
	sink        Sink
	config      *Config
	clock       Clock

	// OnSend is called after each send attempt
	OnSend func(message string, err error)
	// OnReceive is called for every received packet, decodable or not
	OnReceive func(pkt Packet)

	state State
}

// noIndicator discards activity signals
type noIndicator struct{}

func (noIndicator) Blink(int, time.Duration, time.Duration) {}

// NewScheduler creates a loop driving transceiver. sink is only written in
// the receiver role and may be nil otherwise. A nil indicator shows nothing.
func NewScheduler(
	transceiver loraduplex.Transceiver,
	indicator loraduplex.Indicator,
	sink Sink,
	config *Config,
) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if indicator == nil {
		indicator = noIndicator{}
	}
	return &Scheduler{
		transceiver: transceiver,
		indicator:   indicator,
		sink:        sink,
		config:      config,
		clock:       MonotonicClock(),
	}
}

// SetClock replaces the millisecond clock
func (s *Scheduler) SetClock(clock Clock) {
	s.clock = clock
}

// State returns a copy of the loop state
func (s *Scheduler) State() State {
	return s.state
}

// Run resets the state and iterates until ctx is done or a send fails
// fatally. There is no pause between iterations.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.config.Role == RoleReceiver && s.sink == nil {
		return fmt.Errorf("%w: receiver role needs a sink", loraduplex.ErrInvalidConfig)
	}

	if s.config.AsyncIndicator {
		if _, already := s.indicator.(*loraduplex.AsyncIndicator); !already {
			async := loraduplex.NewAsyncIndicator(s.indicator, 4)
			indCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go async.Run(indCtx)
			prev := s.indicator
			s.indicator = async
			defer func() { s.indicator = prev }()
		}
	}

	s.state = State{}
	loraduplex.Debugf("duplex loop started as %s", s.config.Role)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(s.clock()); err != nil {
			return err
		}
	}
}

// Step runs one iteration at time now. It only returns an error when a send
// fails in a way that leaves the hardware unusable.
func (s *Scheduler) Step(now int64) error {
	if now < s.state.LastSendTime {
		s.state.LastSendTime = now
	}

	if now-s.state.LastSendTime > s.state.Interval {
		s.state.LastSendTime = now
		s.state.Interval = NextInterval(now, s.config.IntervalBase, s.config.IntervalRange)
		if err := s.send(); err != nil {
			return err
		}
	}

	s.receive()
	return nil
}

func (s *Scheduler) send() error {
	message := fmt.Sprintf("%s %d", s.config.RoleTag, s.state.MsgCount)
	err := s.transceiver.Send(message)
	s.state.MsgCount++

	if err != nil {
		loraduplex.Debugf("send %q failed: %v", message, err)
	} else {
		loraduplex.Debugf("sent %q, next in %d ms", message, s.state.Interval)
	}
	if s.OnSend != nil {
		s.OnSend(message, err)
	}
	if loraduplex.IsFatal(err) {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

func (s *Scheduler) receive() {
	if !s.transceiver.ReceivedPacket() {
		return
	}
	s.config.ActivityBlink.Play(s.indicator)

	var pkt Packet
	pkt.Payload, pkt.Err = s.transceiver.ReadPayload()
	if pkt.Err == nil {
		pkt.Text, pkt.Err = DecodeText(pkt.Payload)
	}
	if pkt.Err != nil {
		loraduplex.Debugf("receive: %v", pkt.Err)
	} else if s.config.Role == RoleReceiver {
		if err := s.sink.WriteLine(pkt.Text); err != nil {
			loraduplex.Debugf("receive log: %v", err)
			pkt.Err = err
		}
	}

	pkt.RSSI = s.transceiver.PacketRSSI()
	loraduplex.Debugf("packet RSSI %d dBm", pkt.RSSI)
	if s.OnReceive != nil {
		s.OnReceive(pkt)
	}
}
