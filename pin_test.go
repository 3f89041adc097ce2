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
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// newTestPinManager creates a manager over mock lines 2..27 plus the LED line
func newTestPinManager() (*PinManager, *mocks.Lines) {
	lines := mocks.NewLines()
	resolver := func(l LineID) (gpio.PinIO, error) { return lines.Get(int(l)) }
	return NewPinManager(resolver, DefaultSupportedLines()), lines
}

func TestPinManager_Acquire(t *testing.T) {
	t.Parallel()

	t.Run("OutputStartsLow", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()

		pin, err := mgr.Acquire(8, Output)
		require.NoError(t, err)
		assert.Equal(t, LineID(8), pin.Line())
		assert.Equal(t, Output, pin.Direction())
		assert.True(t, pin.Bound())
		assert.True(t, lines.Line(8).IsOutput())
		assert.Equal(t, []gpio.Level{gpio.Low}, lines.Line(8).Outs())
		assert.True(t, mgr.Held(8))
	})

	t.Run("Conflict", func(t *testing.T) {
		t.Parallel()
		mgr, _ := newTestPinManager()

		_, err := mgr.Acquire(5, InputWithInterrupt)
		require.NoError(t, err)

		_, err = mgr.Acquire(5, Output)
		require.ErrorIs(t, err, ErrPinConflict)
		assert.True(t, IsFatal(err))
	})

	t.Run("InvalidLine", func(t *testing.T) {
		t.Parallel()
		mgr, _ := newTestPinManager()

		for _, line := range []LineID{0, 1, 28, 46, NoLine} {
			_, err := mgr.Acquire(line, Input)
			require.ErrorIs(t, err, ErrInvalidLine, "line %d", line)
		}
	})

	t.Run("ResolverFailure", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		lines.Remove(9)

		_, err := mgr.Acquire(9, Input)
		require.Error(t, err)
		assert.False(t, mgr.Held(9))
	})

	t.Run("ConfigureFailure", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		lines.Line(10).OutErr = assert.AnError

		_, err := mgr.Acquire(10, Output)
		require.ErrorIs(t, err, ErrHardwareUnavailable)
		assert.False(t, mgr.Held(10))
	})

	t.Run("UnboundDirectionRejected", func(t *testing.T) {
		t.Parallel()
		mgr, _ := newTestPinManager()

		_, err := mgr.Acquire(11, Unbound)
		require.ErrorIs(t, err, ErrDirectionMismatch)
	})

	t.Run("EmptySupportedSetAllowsAnyLine", func(t *testing.T) {
		t.Parallel()
		lines := mocks.NewLines()
		mgr := NewPinManager(func(l LineID) (gpio.PinIO, error) { return lines.Get(int(l)) }, nil)

		_, err := mgr.Acquire(100, Input)
		require.NoError(t, err)
		_, err = mgr.Acquire(NoLine, Input)
		require.ErrorIs(t, err, ErrInvalidLine)
	})
}

func TestPin_DirectionOperations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dir       Direction
		canSet    bool
		canRead   bool
		canAttach bool
	}{
		{name: "Output", dir: Output, canSet: true},
		{name: "Input", dir: Input, canRead: true},
		{name: "InputWithInterrupt", dir: InputWithInterrupt, canRead: true, canAttach: true},
		{name: "Unbound", dir: Unbound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mgr, _ := newTestPinManager()

			pin := UnboundPin()
			if tt.dir != Unbound {
				var err error
				pin, err = mgr.Acquire(12, tt.dir)
				require.NoError(t, err)
			}

			setErr := pin.SetHigh()
			lowErr := pin.SetLow()
			_, readErr := pin.Read()
			attachErr := pin.AttachInterrupt(gpio.RisingEdge, func() {})
			t.Cleanup(func() { _ = pin.DetachInterrupt() })

			assert.Equal(t, tt.canSet, setErr == nil, "SetHigh: %v", setErr)
			assert.Equal(t, tt.canSet, lowErr == nil, "SetLow: %v", lowErr)
			assert.Equal(t, tt.canRead, readErr == nil, "Read: %v", readErr)
			assert.Equal(t, tt.canAttach, attachErr == nil, "AttachInterrupt: %v", attachErr)

			if tt.dir == Unbound {
				require.ErrorIs(t, setErr, ErrPinUnbound)
				require.ErrorIs(t, readErr, ErrPinUnbound)
				return
			}
			if !tt.canSet {
				require.ErrorIs(t, setErr, ErrDirectionMismatch)
			}
			if !tt.canRead {
				require.ErrorIs(t, readErr, ErrDirectionMismatch)
			}
			if !tt.canAttach {
				require.ErrorIs(t, attachErr, ErrDirectionMismatch)
			}
		})
	}
}

func TestPin_Read(t *testing.T) {
	t.Parallel()
	mgr, lines := newTestPinManager()

	pin, err := mgr.Acquire(13, Input)
	require.NoError(t, err)

	lines.Line(13).SetLevel(gpio.High)
	high, err := pin.Read()
	require.NoError(t, err)
	assert.True(t, high)

	lines.Line(13).SetLevel(gpio.Low)
	high, err = pin.Read()
	require.NoError(t, err)
	assert.False(t, high)
}

func TestPin_Interrupts(t *testing.T) {
	t.Parallel()

	t.Run("DeliversEdges", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		pin, err := mgr.Acquire(5, InputWithInterrupt)
		require.NoError(t, err)

		var fired atomic.Int32
		require.NoError(t, pin.AttachInterrupt(gpio.RisingEdge, func() { fired.Add(1) }))
		t.Cleanup(func() { _ = pin.Release() })
		assert.Equal(t, gpio.RisingEdge, lines.Line(5).Armed())

		lines.Line(5).TriggerEdge()
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("AlreadyAttached", func(t *testing.T) {
		t.Parallel()
		mgr, _ := newTestPinManager()
		pin, err := mgr.Acquire(6, InputWithInterrupt)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pin.Release() })

		require.NoError(t, pin.AttachInterrupt(gpio.RisingEdge, func() {}))
		err = pin.AttachInterrupt(gpio.RisingEdge, func() {})
		require.ErrorIs(t, err, ErrAlreadyAttached)
	})

	t.Run("NilHandlerRejected", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		pin, err := mgr.Acquire(12, InputWithInterrupt)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pin.Release() })

		err = pin.AttachInterrupt(gpio.RisingEdge, nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Equal(t, gpio.NoEdge, lines.Line(12).Armed())

		var fired atomic.Int32
		require.NoError(t, pin.AttachInterrupt(gpio.RisingEdge, func() { fired.Add(1) }))
		require.ErrorIs(t, pin.AttachInterrupt(gpio.RisingEdge, func() {}), ErrAlreadyAttached)

		lines.Line(12).TriggerEdge()
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("DetachIsIdempotentAndAllowsReattach", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		pin, err := mgr.Acquire(7, InputWithInterrupt)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pin.Release() })

		require.NoError(t, pin.DetachInterrupt())
		require.NoError(t, pin.AttachInterrupt(gpio.RisingEdge, func() {}))
		require.NoError(t, pin.DetachInterrupt())
		require.NoError(t, pin.DetachInterrupt())
		assert.Equal(t, gpio.NoEdge, lines.Line(7).Armed())

		require.NoError(t, pin.AttachInterrupt(gpio.FallingEdge, func() {}))
		assert.Equal(t, gpio.FallingEdge, lines.Line(7).Armed())
	})

	t.Run("NoDeliveryAfterDetach", func(t *testing.T) {
		t.Parallel()
		mgr, lines := newTestPinManager()
		pin, err := mgr.Acquire(16, InputWithInterrupt)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pin.Release() })

		var fired atomic.Int32
		require.NoError(t, pin.AttachInterrupt(gpio.RisingEdge, func() { fired.Add(1) }))
		require.NoError(t, pin.DetachInterrupt())

		// let the watcher observe the stop signal
		time.Sleep(2 * watchPoll)
		lines.Line(16).TriggerEdge()
		time.Sleep(2 * watchPoll)
		assert.Zero(t, fired.Load())
	})
}

func TestPin_Release(t *testing.T) {
	t.Parallel()
	mgr, lines := newTestPinManager()

	pin, err := mgr.Acquire(17, Output)
	require.NoError(t, err)

	require.NoError(t, pin.Release())
	require.NoError(t, pin.Release())
	assert.False(t, mgr.Held(17))
	assert.False(t, lines.Line(17).IsOutput(), "released line should be returned to input")

	require.ErrorIs(t, pin.SetHigh(), ErrPinReleased)

	again, err := mgr.Acquire(17, Input)
	require.NoError(t, err)
	assert.Equal(t, Input, again.Direction())

	// releasing the stale handle must not free the new owner's line
	require.NoError(t, pin.Release())
	assert.True(t, mgr.Held(17))
}

func TestPinManager_ReleaseAll(t *testing.T) {
	t.Parallel()
	mgr, _ := newTestPinManager()

	for _, line := range []LineID{2, 3, 4} {
		_, err := mgr.Acquire(line, Output)
		require.NoError(t, err)
	}
	require.NoError(t, mgr.ReleaseAll())
	for _, line := range []LineID{2, 3, 4} {
		assert.False(t, mgr.Held(line))
	}
	require.NoError(t, mgr.ReleaseAll())
}

func TestLineID_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "GPIO8", LineID(8).String())
	assert.Equal(t, "unbound", NoLine.String())
	assert.Equal(t, "input+irq", InputWithInterrupt.String())
}
