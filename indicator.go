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
	"context"
	"sync/atomic"
	"time"
)

// Indicator flashes a status light
type Indicator interface {
	// Blink toggles the light times times and returns once the sequence is done
	Blink(times int, on, off time.Duration)
}

// BlinkPattern is one blink sequence
type BlinkPattern struct {
	Times int      `json:"times"`
	On    Duration `json:"on"`
	Off   Duration `json:"off"`
}

// Play runs the pattern on ind
func (bp BlinkPattern) Play(ind Indicator) {
	ind.Blink(bp.Times, time.Duration(bp.On), time.Duration(bp.Off))
}

// PinIndicator drives an LED on an output pin
type PinIndicator struct {
	pin      *Pin
	sleep    func(time.Duration)
	highIsOn bool
}

// NewPinIndicator wraps an output pin. sleep defaults to time.Sleep.
func NewPinIndicator(pin *Pin, highIsOn bool, sleep func(time.Duration)) *PinIndicator {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &PinIndicator{pin: pin, highIsOn: highIsOn, sleep: sleep}
}

// Set switches the LED on or off, honouring its active level
func (pi *PinIndicator) Set(on bool) error {
	if on == pi.highIsOn {
		return pi.pin.SetHigh()
	}
	return pi.pin.SetLow()
}

// Blink implements Indicator. It blocks for times*(on+off).
func (pi *PinIndicator) Blink(times int, on, off time.Duration) {
	for _i := 0; _i < times; _i++ {
		if err := pi.Set(true); err != nil {
			Debugf("indicator on: %v", err)
		}
		pi.sleep(on)
		if err := pi.Set(false); err != nil {
			Debugf("indicator off: %v", err)
		}
		pi.sleep(off)
	}
}

// AsyncIndicator queues blink requests for a single worker so callers never
// block. Each queued request keeps its own count and timing. Requests arriving
// while the queue is full are dropped.
type AsyncIndicator struct {
	target   Indicator
	requests chan BlinkPattern
	dropped  atomic.Uint64
}

// NewAsyncIndicator creates a queue of the given depth in front of target
func NewAsyncIndicator(target Indicator, depth int) *AsyncIndicator {
	if depth <= 0 {
		depth = 4
	}
	return &AsyncIndicator{
		target:   target,
		requests: make(chan BlinkPattern, depth),
	}
}

// Blink implements Indicator without blocking
func (a *AsyncIndicator) Blink(times int, on, off time.Duration) {
	select {
	case a.requests <- BlinkPattern{Times: times, On: Duration(on), Off: Duration(off)}:
	default:
		a.dropped.Add(1)
		Debugf("indicator queue full, dropping blink x%d", times)
	}
}

// Dropped returns how many requests were discarded
func (a *AsyncIndicator) Dropped() uint64 {
	return a.dropped.Load()
}

// Run plays queued requests until ctx is done
func (a *AsyncIndicator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-a.requests:
			req.Play(a.target)
		}
	}
}
