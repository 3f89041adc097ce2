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
	"sync"
	"testing"

	"github.com/ZaparooProject/go-loraduplex/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func openTestBridge(t *testing.T) (*SpiBridge, *mocks.SPIPort) {
	t.Helper()
	port := mocks.NewSPIPort()
	bridge, err := OpenBridge(SPIConfig{Bus: 0, Device: 0, SpeedHz: DefaultSPISpeedHz},
		func(string) (spi.PortCloser, error) { return port, nil })
	require.NoError(t, err)
	return bridge, port
}

func acquireSS(t *testing.T) (*Pin, *mocks.Line) {
	t.Helper()
	mgr, lines := newTestPinManager()
	ss, err := mgr.Acquire(8, Output)
	require.NoError(t, err)
	require.NoError(t, ss.SetHigh())
	lines.Line(8).ResetOuts()
	return ss, lines.Line(8)
}

func TestOpenBridge(t *testing.T) {
	t.Parallel()

	t.Run("ConnectsWithConfiguredSettings", func(t *testing.T) {
		t.Parallel()
		port := mocks.NewSPIPort()
		var opened string
		cfg := SPIConfig{Bus: 1, Device: 2, SpeedHz: 5_000_000, Mode: 3, NoCS: true}

		bridge, err := OpenBridge(cfg, func(name string) (spi.PortCloser, error) {
			opened = name
			return port, nil
		})
		require.NoError(t, err)

		assert.Equal(t, "SPI1.2", opened)
		assert.Equal(t, "SPI1.2", bridge.Name())
		assert.Equal(t, 5*physic.MegaHertz, port.Freq)
		assert.Equal(t, spi.Mode3|spi.NoCS, port.Mode)
		assert.Equal(t, 8, port.Bits)
	})

	t.Run("OpenFailure", func(t *testing.T) {
		t.Parallel()
		_, err := OpenBridge(SPIConfig{SpeedHz: DefaultSPISpeedHz},
			func(string) (spi.PortCloser, error) { return nil, errors.New("no such device") })
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.True(t, IsFatal(err))
	})

	t.Run("ConnectFailureClosesPort", func(t *testing.T) {
		t.Parallel()
		port := mocks.NewSPIPort()
		port.ConnectErr = errors.New("bad mode")

		_, err := OpenBridge(SPIConfig{SpeedHz: DefaultSPISpeedHz},
			func(string) (spi.PortCloser, error) { return port, nil })
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Equal(t, 1, port.CloseCalls())
	})
}

func TestSpiBridge_Transfer(t *testing.T) {
	t.Parallel()

	t.Run("FramesExchangeWithChipSelect", func(t *testing.T) {
		t.Parallel()
		bridge, port := openTestBridge(t)
		ss, line := acquireSS(t)
		port.Conn.TxFunc = func(w, r []byte) error {
			assert.Equal(t, gpio.Low, line.Level(), "SS must be asserted during the exchange")
			r[0], r[1] = 0xFF, 0x12
			return nil
		}

		resp, err := bridge.Transfer(ss, 0x42, 0x00)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x12}, resp)
		assert.Equal(t, [][]byte{{0x42, 0x00}}, port.Conn.Writes())
		assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, line.Outs())
	})

	t.Run("DeassertsOnFailure", func(t *testing.T) {
		t.Parallel()
		bridge, port := openTestBridge(t)
		ss, line := acquireSS(t)
		port.Conn.TxFunc = func(_, _ []byte) error { return errors.New("bus fault") }

		resp, err := bridge.Transfer(ss, 0x81, 0x55)
		require.ErrorIs(t, err, ErrTransferFailed)
		assert.Nil(t, resp)
		assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, line.Outs())
		assert.False(t, IsFatal(err))

		var traced *TraceableError
		require.ErrorAs(t, err, &traced)
		assert.Equal(t, "SPI0.0", traced.Bus)
		require.NotEmpty(t, traced.Trace)
		assert.Equal(t, []byte{0x81, 0x55}, traced.Trace[len(traced.Trace)-1].Data)
	})

	t.Run("RejectsNonOutputSS", func(t *testing.T) {
		t.Parallel()
		bridge, port := openTestBridge(t)

		_, err := bridge.Transfer(UnboundPin(), 0x01, 0x00)
		require.ErrorIs(t, err, ErrPinUnbound)
		assert.Empty(t, port.Conn.Writes())
	})

	t.Run("AfterClose", func(t *testing.T) {
		t.Parallel()
		bridge, port := openTestBridge(t)
		ss, line := acquireSS(t)
		require.NoError(t, bridge.Close())

		_, err := bridge.Transfer(ss, 0x01, 0x00)
		require.ErrorIs(t, err, ErrBridgeClosed)
		assert.Empty(t, port.Conn.Writes())
		assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, line.Outs())
	})

	t.Run("SerializesConcurrentCallers", func(t *testing.T) {
		t.Parallel()
		bridge, port := openTestBridge(t)
		ss, line := acquireSS(t)

		const callers = 8
		const perCaller = 25
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(addr byte) {
				defer wg.Done()
				for _i := 0; _i < perCaller; _i++ {
					_, err := bridge.Transfer(ss, addr, 0)
					assert.NoError(t, err)
				}
			}(byte(i))
		}
		wg.Wait()

		assert.Zero(t, port.Conn.Overlaps())
		assert.Len(t, port.Conn.Writes(), callers*perCaller)

		// every assert is paired with a deassert before the next assert
		outs := line.Outs()
		require.Len(t, outs, 2*callers*perCaller)
		for i := 0; i < len(outs); i += 2 {
			assert.Equal(t, gpio.Low, outs[i])
			assert.Equal(t, gpio.High, outs[i+1])
		}
	})
}

func TestSpiBridge_Close(t *testing.T) {
	t.Parallel()
	bridge, port := openTestBridge(t)

	require.NoError(t, bridge.Close())
	require.NoError(t, bridge.Close())
	assert.Equal(t, 1, port.CloseCalls())
}

func TestSPIConfig_Mode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, spi.Mode0, SPIConfig{}.spiMode())
	assert.Equal(t, spi.Mode1|spi.LSBFirst, SPIConfig{Mode: 1, LSBFirst: true}.spiMode())
}
