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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/syncutil"
)

// ControllerOption customizes how a Controller reaches the hardware
type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	resolver LineResolver
	opener   PortOpener
	sleep    func(time.Duration)
}

// WithLineResolver replaces the periph GPIO registry
func WithLineResolver(resolver LineResolver) ControllerOption {
	return func(o *controllerOptions) {
		o.resolver = resolver
	}
}

// WithPortOpener replaces the periph SPI registry
func WithPortOpener(opener PortOpener) ControllerOption {
	return func(o *controllerOptions) {
		o.opener = opener
	}
}

// WithSleep replaces time.Sleep for reset pulses and blinking
func WithSleep(sleep func(time.Duration)) ControllerOption {
	return func(o *controllerOptions) {
		o.sleep = sleep
	}
}

type registration struct {
	transceiver Transceiver
	pins        TransceiverPins
}

// Controller owns the reset line, the status indicator and the SPI bridge,
// and lends them to the transceivers it registers.
type Controller struct {
	pins         *PinManager
	bridge       *SpiBridge
	led          *PinIndicator
	reset        *Pin
	sleep        func(time.Duration)
	transceivers map[string]*registration
	cfg          Config
	mu           syncutil.Mutex
	closed       bool
}

// NewController acquires the indicator and reset lines, pulses reset, opens
// the SPI bridge and plays the startup blink. If the bus cannot be opened
// every acquired line is released and the error wraps ErrHardwareUnavailable.
func NewController(cfg *Config, opts ...ControllerOption) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := controllerOptions{sleep: time.Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		cfg:          *cfg,
		pins:         NewPinManager(o.resolver, cfg.SupportedLines),
		sleep:        o.sleep,
		transceivers: make(map[string]*registration),
	}

	ledPin, err := c.pins.Acquire(cfg.IndicatorLine, Output)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire indicator line: %w", err)
	}
	c.led = NewPinIndicator(ledPin, cfg.IndicatorHighIsOn, c.sleep)
	if err := c.led.Set(false); err != nil {
		_ = c.pins.ReleaseAll()
		return nil, fmt.Errorf("failed to switch indicator off: %w", err)
	}

	c.reset, err = c.pins.Acquire(cfg.ResetLine, Output)
	if err != nil {
		_ = c.pins.ReleaseAll()
		return nil, fmt.Errorf("failed to acquire reset line: %w", err)
	}
	if err := c.ResetTransceivers(); err != nil {
		_ = c.pins.ReleaseAll()
		return nil, err
	}

	c.bridge, err = OpenBridge(cfg.SPI, o.opener)
	if err != nil {
		_ = c.pins.ReleaseAll()
		return nil, fmt.Errorf("failed to open SPI bridge: %w", err)
	}

	cfg.StartupBlink.Play(c)
	return c, nil
}

// ResetTransceivers pulses the reset line low then high
func (c *Controller) ResetTransceivers() error {
	if err := c.reset.SetLow(); err != nil {
		return fmt.Errorf("reset low: %w", err)
	}
	c.sleep(time.Duration(c.cfg.ResetLow))
	if err := c.reset.SetHigh(); err != nil {
		return fmt.Errorf("reset high: %w", err)
	}
	c.sleep(time.Duration(c.cfg.ResetHigh))
	return nil
}

// Blink implements Indicator on the status LED. It blocks for
// times*(on+off).
func (c *Controller) Blink(times int, on, off time.Duration) {
	c.led.Blink(times, on, off)
}

// AddTransceiver acquires the lines in assign, builds the driver with a
// HardwareContext bound to them, initializes it and registers it under name.
// Registering a name that is already present replaces the earlier entry:
// its lines are released first so the new entry may reuse them.
func (c *Controller) AddTransceiver(
	name string,
	assign PinAssignments,
	factory TransceiverFactory,
) (Transceiver, error) {
	if err := assign.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrControllerClosed
	}

	if prev, ok := c.transceivers[name]; ok {
		Debugf("replacing transceiver %q", name)
		delete(c.transceivers, name)
		if err := prev.pins.release(); err != nil {
			Debugf("releasing lines of replaced transceiver %q: %v", name, err)
		}
	}

	pins, err := c.acquireTransceiverPins(assign)
	if err != nil {
		return nil, fmt.Errorf("transceiver %q: %w", name, err)
	}

	hw := &hardwareContext{
		name:      name,
		bridge:    c.bridge,
		indicator: c,
		pins:      pins,
	}
	transceiver, err := factory(hw)
	if err != nil {
		_ = pins.release()
		return nil, fmt.Errorf("%w: %s: %w", ErrTransceiverInit, name, err)
	}
	if err := transceiver.Init(); err != nil {
		_ = pins.release()
		return nil, fmt.Errorf("%w: %s: %w", ErrTransceiverInit, name, err)
	}

	c.transceivers[name] = &registration{transceiver: transceiver, pins: pins}
	Debugf("registered transceiver %q on %s", name, assign.SS)
	return transceiver, nil
}

func (c *Controller) acquireTransceiverPins(assign PinAssignments) (TransceiverPins, error) {
	var pins TransceiverPins

	ss, err := c.pins.Acquire(assign.SS, Output)
	if err != nil {
		return pins, err
	}
	pins.SS = ss
	if err := ss.SetHigh(); err != nil {
		_ = pins.release()
		return pins, err
	}

	for i, line := range assign.interruptLines() {
		if line == NoLine {
			pins.setInterrupt(i, UnboundPin())
			continue
		}
		p, err := c.pins.Acquire(line, InputWithInterrupt)
		if err != nil {
			_ = pins.release()
			return TransceiverPins{}, err
		}
		pins.setInterrupt(i, p)
	}
	return pins, nil
}

// Transceiver returns the transceiver registered under name
func (c *Controller) Transceiver(name string) (Transceiver, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.transceivers[name]
	if !ok {
		return nil, false
	}
	return reg.transceiver, true
}

// Names returns the registered transceiver names in sorted order
func (c *Controller) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.transceivers))
	for name := range c.transceivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases the SPI bridge and every acquired line. Closing twice is a
// no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.bridge.Close(); err != nil {
		errs = append(errs, err)
	}
	for name, reg := range c.transceivers {
		if err := reg.pins.release(); err != nil {
			errs = append(errs, fmt.Errorf("transceiver %q: %w", name, err))
		}
	}
	c.transceivers = map[string]*registration{}
	if err := c.pins.ReleaseAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
