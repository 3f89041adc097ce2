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
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
)

// LineID identifies a GPIO line by its platform (BCM) number
type LineID int

// NoLine marks an optional line that is not wired
const NoLine LineID = -1

func (l LineID) String() string {
	if l == NoLine {
		return "unbound"
	}
	return fmt.Sprintf("GPIO%d", int(l))
}

// Direction is fixed when a pin is acquired. Unbound stands for an optional
// line that has no hardware behind it.
type Direction int

const (
	// Unbound pins support no operation except Release
	Unbound Direction = iota
	// Output pins can be driven high or low
	Output
	// Input pins can be read
	Input
	// InputWithInterrupt pins can be read and can call a handler on an edge
	InputWithInterrupt
)

func (d Direction) String() string {
	switch d {
	case Unbound:
		return "unbound"
	case Output:
		return "output"
	case Input:
		return "input"
	case InputWithInterrupt:
		return "input+irq"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// watchPoll bounds each WaitForEdge call so a detached watcher exits promptly
const watchPoll = 100 * time.Millisecond

// LineResolver maps a line id to the platform GPIO implementation
type LineResolver func(line LineID) (gpio.PinIO, error)

// PinManager hands out GPIO lines, at most one live Pin per line
type PinManager struct {
	resolve   LineResolver
	supported map[LineID]struct{}
	held      map[LineID]*Pin
	mu        syncutil.Mutex
}

// NewPinManager creates a manager for the given lines. An empty supported set
// allows any non-negative line id.
func NewPinManager(resolve LineResolver, supported []LineID) *PinManager {
	if resolve == nil {
		resolve = PeriphLineResolver
	}
	m := &PinManager{
		resolve: resolve,
		held:    make(map[LineID]*Pin),
	}
	if len(supported) > 0 {
		m.supported = make(map[LineID]struct{}, len(supported))
		for _, l := range supported {
			m.supported[l] = struct{}{}
		}
	}
	return m
}

func (m *PinManager) isSupported(line LineID) bool {
	if line < 0 {
		return false
	}
	if m.supported == nil {
		return true
	}
	_, ok := m.supported[line]
	return ok
}

// Acquire claims line in the given direction. Output lines start low.
func (m *PinManager) Acquire(line LineID, dir Direction) (*Pin, error) {
	if dir == Unbound {
		return nil, NewPinError("acquire", line, ErrDirectionMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isSupported(line) {
		return nil, NewPinError("acquire", line, ErrInvalidLine)
	}
	if _, taken := m.held[line]; taken {
		return nil, NewPinError("acquire", line, ErrPinConflict)
	}

	pinIO, err := m.resolve(line)
	if err != nil {
		return nil, NewPinError("acquire", line, err)
	}

	if dir == Output {
		err = pinIO.Out(gpio.Low)
	} else {
		err = pinIO.In(gpio.PullNoChange, gpio.NoEdge)
	}
	if err != nil {
		return nil, NewPinError("configure", line, fmt.Errorf("%w: %w", ErrHardwareUnavailable, err))
	}

	p := &Pin{
		line: line,
		dir:  dir,
		io:   pinIO,
		mgr:  m,
	}
	m.held[line] = p
	Debugf("acquired %s as %s", line, dir)
	return p, nil
}

// Held reports whether line is currently acquired
func (m *PinManager) Held(line LineID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[line]
	return ok
}

// ReleaseAll releases every pin still held
func (m *PinManager) ReleaseAll() error {
	m.mu.Lock()
	pins := make([]*Pin, 0, len(m.held))
	for _, p := range m.held {
		pins = append(pins, p)
	}
	m.mu.Unlock()

	var firstErr error
	for _, p := range pins {
		if err := p.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *PinManager) forget(p *Pin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[p.line] == p {
		delete(m.held, p.line)
	}
}

// Pin is one acquired GPIO line. Operations that do not match the pin's
// direction fail with ErrDirectionMismatch.
type Pin struct {
	io        gpio.PinIO
	mgr       *PinManager
	handler   func()
	stopWatch chan struct{}
	line      LineID
	dir       Direction
	mu        syncutil.Mutex
	released  bool
}

// UnboundPin returns a placeholder for an optional line that is not wired
func UnboundPin() *Pin {
	return &Pin{line: NoLine, dir: Unbound}
}

// Line returns the platform line id
func (p *Pin) Line() LineID {
	return p.line
}

// Direction returns the direction fixed at acquisition
func (p *Pin) Direction() Direction {
	return p.dir
}

// Bound reports whether the pin has hardware behind it
func (p *Pin) Bound() bool {
	return p.dir != Unbound
}

func (p *Pin) check(op string, allowed ...Direction) error {
	if p.dir == Unbound {
		return NewPinError(op, p.line, ErrPinUnbound)
	}
	if p.released {
		return NewPinError(op, p.line, ErrPinReleased)
	}
	for _, d := range allowed {
		if p.dir == d {
			return nil
		}
	}
	return NewPinError(op, p.line, fmt.Errorf("%w: %s", ErrDirectionMismatch, p.dir))
}

// SetHigh drives an output pin high
func (p *Pin) SetHigh() error {
	return p.set(gpio.High)
}

// SetLow drives an output pin low
func (p *Pin) SetLow() error {
	return p.set(gpio.Low)
}

func (p *Pin) set(level gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("set", Output); err != nil {
		return err
	}
	if err := p.io.Out(level); err != nil {
		return NewPinError("set", p.line, err)
	}
	return nil
}

// Read returns the level of an input pin
func (p *Pin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("read", Input, InputWithInterrupt); err != nil {
		return false, err
	}
	return p.io.Read() == gpio.High, nil
}

// AttachInterrupt arms edge detection and calls handler from a watcher
// goroutine on every matching edge. Handlers that touch loop state must hand
// the event back to the loop's goroutine themselves.
func (p *Pin) AttachInterrupt(edge gpio.Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check("attach", InputWithInterrupt); err != nil {
		return err
	}
	if handler == nil {
		return NewPinError("attach", p.line, ErrInvalidConfig)
	}
	if p.stopWatch != nil {
		return NewPinError("attach", p.line, ErrAlreadyAttached)
	}
	if err := p.io.In(gpio.PullNoChange, edge); err != nil {
		return NewPinError("attach", p.line, err)
	}

	stop := make(chan struct{})
	p.handler = handler
	p.stopWatch = stop
	go p.watch(stop, handler)
	return nil
}

func (p *Pin) watch(stop <-chan struct{}, handler func()) {
	for {
		edged := p.io.WaitForEdge(watchPoll)
		select {
		case <-stop:
			return
		default:
		}
		if edged {
			handler()
		}
	}
}

// DetachInterrupt stops edge delivery. Calling it without a handler attached
// is a no-op.
func (p *Pin) DetachInterrupt() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detachLocked()
}

func (p *Pin) detachLocked() error {
	if p.stopWatch == nil {
		return nil
	}
	close(p.stopWatch)
	p.stopWatch = nil
	p.handler = nil
	if err := p.io.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return NewPinError("detach", p.line, err)
	}
	return nil
}

// Release detaches any handler, returns the line to a plain input and frees
// the line id for reuse. Releasing twice is a no-op.
func (p *Pin) Release() error {
	p.mu.Lock()
	if p.released || p.dir == Unbound {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	err := p.detachLocked()
	if inErr := p.io.In(gpio.PullNoChange, gpio.NoEdge); inErr != nil && err == nil {
		err = NewPinError("release", p.line, inErr)
	}
	p.mu.Unlock()

	p.mgr.forget(p)
	Debugf("released %s", p.line)
	return err
}
