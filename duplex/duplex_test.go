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
	"math"
	"os"
	"path/filepath"
	"testing"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		last int64
		want int64
	}{
		{name: "zero", last: 0, want: 2000},
		{name: "mid range", last: 2500, want: 2500},
		{name: "top of range", last: 1999, want: 3999},
		{name: "wraps", last: 4000, want: 2000},
		{name: "negative", last: -1, want: 3999},
		{name: "negative wraps", last: -4500, want: 3500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NextInterval(tt.last, DefaultIntervalBase, DefaultIntervalRange))
		})
	}
}

func TestNextInterval_Bounds(t *testing.T) {
	t.Parallel()

	samples := []int64{math.MinInt64, math.MinInt64 + 1, -7919, -1, 0, 1, 1999, 2000, 123_456_789, math.MaxInt64}
	for _, rng := range []int64{1, 7, 2000} {
		for _, last := range samples {
			got := NextInterval(last, 2000, rng)
			assert.GreaterOrEqual(t, got, int64(2000), "last=%d rng=%d", last, rng)
			assert.Less(t, got, 2000+rng, "last=%d rng=%d", last, rng)
		}
	}
}

func TestFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "R2B")
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0o600))

	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())
	require.NoError(t, sink.WriteLine("Arduino 0"))
	require.NoError(t, sink.WriteLine("Arduino 1"))
	require.NoError(t, sink.Close())

	// a second run keeps appending
	sink, err = OpenFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.WriteLine("Arduino 2"))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(filepath.Clean(path))
	require.NoError(t, err)
	assert.Equal(t, "earlier\nArduino 0\nArduino 1\nArduino 2\n", string(content))
}

func TestFileSink_EmbeddedLineBreaks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "R2B")
	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.WriteLine("Arduino\n7"))
	require.NoError(t, sink.WriteLine("a\r\nb\rc"))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(filepath.Clean(path))
	require.NoError(t, err)
	assert.Equal(t, "Arduino 7\na b c\n", string(content))
}

func TestConfig_OpenSink(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.LogPath = filepath.Join(t.TempDir(), "R2B")
	sink, err := cfg.OpenSink()
	require.NoError(t, err)
	assert.Equal(t, cfg.LogPath, sink.Path())
	require.NoError(t, sink.WriteLine("Arduino 0"))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(filepath.Clean(cfg.LogPath))
	require.NoError(t, err)
	assert.Equal(t, "Arduino 0\n", string(content))

	cfg.LogPath = ""
	_, err = cfg.OpenSink()
	require.ErrorIs(t, err, loraduplex.ErrInvalidConfig)
}

func TestFileSink_Errors(t *testing.T) {
	t.Parallel()

	_, err := OpenFileSink(filepath.Join(t.TempDir(), "missing", "R2B"))
	require.Error(t, err)

	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "R2B"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.Error(t, sink.WriteLine("late"))
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	text, err := DecodeText([]byte("Arduino 12"))
	require.NoError(t, err)
	assert.Equal(t, "Arduino 12", text)

	text, err = DecodeText([]byte("héllo"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	_, err = DecodeText([]byte{0x41, 0xFF})
	require.ErrorIs(t, err, loraduplex.ErrDecodeFailure)
	assert.Contains(t, err.Error(), "41 FF")
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Role{
		"sender": RoleSender, "TX": RoleSender, " receiver ": RoleReceiver, "rx": RoleReceiver,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("both")
	require.ErrorIs(t, err, loraduplex.ErrInvalidConfig)
	assert.Equal(t, "receiver", RoleReceiver.String())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "RPi", cfg.RoleTag)
	assert.Equal(t, DefaultLogPath, cfg.LogPath)

	cfg.IntervalRange = 0
	require.ErrorIs(t, cfg.Validate(), loraduplex.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.IntervalBase = -1
	require.ErrorIs(t, cfg.Validate(), loraduplex.ErrInvalidConfig)
}
