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
	"testing"
	"time"

	"github.com/ZaparooProject/go-loraduplex/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func newTestIndicator(t *testing.T, highIsOn bool) (*PinIndicator, *mocks.Line, *[]time.Duration) {
	t.Helper()
	mgr, lines := newTestPinManager()
	pin, err := mgr.Acquire(OnBoardLEDLine, Output)
	require.NoError(t, err)
	lines.Line(int(OnBoardLEDLine)).ResetOuts()

	var slept []time.Duration
	ind := NewPinIndicator(pin, highIsOn, func(d time.Duration) { slept = append(slept, d) })
	return ind, lines.Line(int(OnBoardLEDLine)), &slept
}

func TestPinIndicator_Blink(t *testing.T) {
	t.Parallel()

	t.Run("HighIsOn", func(t *testing.T) {
		t.Parallel()
		ind, line, slept := newTestIndicator(t, true)

		ind.Blink(2, 500*time.Millisecond, 250*time.Millisecond)

		assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}, line.Outs())
		assert.Equal(t, []time.Duration{
			500 * time.Millisecond, 250 * time.Millisecond,
			500 * time.Millisecond, 250 * time.Millisecond,
		}, *slept)
	})

	t.Run("LowIsOn", func(t *testing.T) {
		t.Parallel()
		ind, line, _ := newTestIndicator(t, false)

		ind.Blink(1, time.Millisecond, time.Millisecond)
		assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, line.Outs())

		line.ResetOuts()
		require.NoError(t, ind.Set(false))
		assert.Equal(t, []gpio.Level{gpio.High}, line.Outs())
	})

	t.Run("ZeroTimes", func(t *testing.T) {
		t.Parallel()
		ind, line, slept := newTestIndicator(t, true)

		ind.Blink(0, time.Second, time.Second)
		assert.Empty(t, line.Outs())
		assert.Empty(t, *slept)
	})

	t.Run("ReleasedPinDoesNotPanic", func(t *testing.T) {
		t.Parallel()
		ind, _, slept := newTestIndicator(t, true)
		require.NoError(t, ind.pin.Release())

		assert.NotPanics(t, func() { ind.Blink(1, time.Millisecond, time.Millisecond) })
		assert.Len(t, *slept, 2)
	})
}

func TestBlinkPattern_Play(t *testing.T) {
	t.Parallel()
	ind := &mocks.Indicator{}

	BlinkPattern{Times: 3, On: Duration(100 * time.Millisecond), Off: Duration(50 * time.Millisecond)}.Play(ind)

	assert.Equal(t, []mocks.Blink{{Times: 3, On: 100 * time.Millisecond, Off: 50 * time.Millisecond}}, ind.Blinks)
}

func TestAsyncIndicator(t *testing.T) {
	t.Parallel()

	t.Run("ForwardsInOrder", func(t *testing.T) {
		t.Parallel()
		target := &mocks.Indicator{}
		async := NewAsyncIndicator(target, 4)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			async.Run(ctx)
			close(done)
		}()

		async.Blink(1, time.Millisecond, time.Millisecond)
		async.Blink(2, time.Millisecond, time.Millisecond)

		assert.Eventually(t, func() bool { return len(target.Recorded()) == 2 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done

		got := target.Recorded()
		assert.Equal(t, 1, got[0].Times)
		assert.Equal(t, 2, got[1].Times)
		assert.Zero(t, async.Dropped())
	})

	t.Run("DropsWhenFull", func(t *testing.T) {
		t.Parallel()
		target := &mocks.Indicator{}
		async := NewAsyncIndicator(target, 2)

		// nothing drains the queue, so the call must not block
		for _i := 0; _i < 5; _i++ {
			async.Blink(1, time.Millisecond, time.Millisecond)
		}
		assert.Equal(t, uint64(3), async.Dropped())
		assert.Empty(t, target.Recorded())
	})
}
