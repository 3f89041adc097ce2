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

// Package mocks provides in-memory stand-ins for GPIO lines, SPI ports and
// transceivers so the controller and the duplex loop can be tested without
// hardware.
package mocks

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Line implements gpio.PinIO and records every level driven onto it
type Line struct {
	OutErr   error
	InErr    error
	edges    chan struct{}
	name     string
	outs     []gpio.Level
	armed    gpio.Edge
	num      int
	inCalls  int
	mu       syncutil.Mutex
	level    gpio.Level
	pull     gpio.Pull
	isOutput bool
}

// NewLine creates a line numbered num
func NewLine(num int) *Line {
	return &Line{
		num:   num,
		name:  fmt.Sprintf("GPIO%d", num),
		edges: make(chan struct{}, 16),
	}
}

// String implements conn.Resource
func (l *Line) String() string { return l.name }

// Halt implements conn.Resource
func (*Line) Halt() error { return nil }

// Name implements pin.Pin
func (l *Line) Name() string { return l.name }

// Number implements pin.Pin
func (l *Line) Number() int { return l.num }

// Function implements pin.Pin
func (l *Line) Function() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOutput {
		return "Out/" + l.level.String()
	}
	return "In/" + l.level.String()
}

// In implements gpio.PinIn
func (l *Line) In(pull gpio.Pull, edge gpio.Edge) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inCalls++
	if l.InErr != nil {
		return l.InErr
	}
	l.isOutput = false
	l.pull = pull
	l.armed = edge
	return nil
}

// Read implements gpio.PinIn
func (l *Line) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// WaitForEdge implements gpio.PinIn
func (l *Line) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-l.edges
		return true
	}
	select {
	case <-l.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Pull implements gpio.PinIn
func (l *Line) Pull() gpio.Pull {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pull
}

// DefaultPull implements gpio.PinIn
func (*Line) DefaultPull() gpio.Pull { return gpio.PullNoChange }

// Out implements gpio.PinOut
func (l *Line) Out(level gpio.Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.OutErr != nil {
		return l.OutErr
	}
	l.isOutput = true
	l.level = level
	l.outs = append(l.outs, level)
	return nil
}

// PWM implements gpio.PinOut
func (*Line) PWM(_ gpio.Duty, _ physic.Frequency) error {
	return fmt.Errorf("PWM not supported on mock line")
}

// Outs returns every level driven since creation or the last ResetOuts
func (l *Line) Outs() []gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]gpio.Level(nil), l.outs...)
}

// ResetOuts clears the recorded levels
func (l *Line) ResetOuts() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outs = nil
}

// SetLevel sets what Read returns
func (l *Line) SetLevel(level gpio.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current level
func (l *Line) Level() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Armed returns the edge most recently passed to In
func (l *Line) Armed() gpio.Edge {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.armed
}

// IsOutput reports whether the line was last configured by Out
func (l *Line) IsOutput() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isOutput
}

// TriggerEdge wakes one WaitForEdge call
func (l *Line) TriggerEdge() {
	select {
	case l.edges <- struct{}{}:
	default:
	}
}

// Lines hands out mock lines by number, creating them on first use
type Lines struct {
	lines   map[int]*Line
	missing map[int]bool
	mu      syncutil.Mutex
}

// NewLines creates an empty registry
func NewLines() *Lines {
	return &Lines{
		lines:   make(map[int]*Line),
		missing: make(map[int]bool),
	}
}

// Get returns line num, the signature a line resolver needs
func (ls *Lines) Get(num int) (gpio.PinIO, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.missing[num] {
		return nil, fmt.Errorf("GPIO%d not present", num)
	}
	return ls.lineLocked(num), nil
}

// Line returns the mock behind num
func (ls *Lines) Line(num int) *Line {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lineLocked(num)
}

// Remove makes Get fail for num
func (ls *Lines) Remove(num int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.missing[num] = true
}

func (ls *Lines) lineLocked(num int) *Line {
	l, ok := ls.lines[num]
	if !ok {
		l = NewLine(num)
		ls.lines[num] = l
	}
	return l
}

var _ gpio.PinIO = (*Line)(nil)
