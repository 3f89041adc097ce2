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
	"io"
	"strings"
	"time"
)

// Error categories for GPIO, SPI and transceiver failures
var (
	// Pin errors - programming or wiring mistakes, never retried
	ErrPinConflict       = errors.New("line already acquired")
	ErrInvalidLine       = errors.New("line not in supported set")
	ErrDirectionMismatch = errors.New("operation not valid for pin direction")
	ErrAlreadyAttached   = errors.New("interrupt handler already attached")
	ErrPinUnbound        = errors.New("pin is unbound")
	ErrPinReleased       = errors.New("pin has been released")

	// Bus errors
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	ErrBridgeClosed        = errors.New("spi bridge is closed")
	ErrTransferFailed      = errors.New("spi transfer failed")

	// Transceiver and payload errors
	ErrTransceiverInit  = errors.New("transceiver init failed")
	ErrDecodeFailure    = errors.New("payload is not valid text")
	ErrNoPayload        = errors.New("no packet pending")
	ErrControllerClosed = errors.New("controller is closed")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// ErrDeviceUnavailable is the name used by SpiBridge.Open for a bus or device
// that cannot be claimed.
var ErrDeviceUnavailable = ErrHardwareUnavailable

// ErrorType represents the category of a hardware error
type ErrorType int

const (
	// ErrorTypeTransient indicates the operation may succeed if attempted again
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates the resource is unusable
	ErrorTypePermanent
)

// HardwareError wraps a GPIO or SPI failure with the resource it concerns
type HardwareError struct {
	Err      error     // Underlying error
	Op       string    // Operation that failed
	Resource string    // Line or bus identifier, e.g. "GPIO8" or "SPI0.0"
	Type     ErrorType // Error category
}

func (e *HardwareError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// NewPinError creates a permanent error for a GPIO line
func NewPinError(op string, line LineID, err error) *HardwareError {
	return &HardwareError{
		Op:       op,
		Resource: line.String(),
		Err:      err,
		Type:     ErrorTypePermanent,
	}
}

// NewBusError creates an error for an SPI bus operation
func NewBusError(op, bus string, err error, errType ErrorType) *HardwareError {
	return &HardwareError{
		Op:       op,
		Resource: bus,
		Err:      err,
		Type:     errType,
	}
}

// IsFatal reports whether err means the hardware is gone or misconfigured and
// the caller should stop rather than continue its loop.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var he *HardwareError
	if errors.As(err, &he) && he.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrHardwareUnavailable),
		errors.Is(err, ErrBridgeClosed),
		errors.Is(err, ErrControllerClosed),
		errors.Is(err, ErrTransceiverInit),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// =============================================================================
// Wire Trace Logging
// =============================================================================

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates bytes clocked out to the transceiver
	TraceTX TraceDirection = "TX"
	// TraceRX indicates bytes clocked in from the transceiver
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level exchange
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with the recent wire exchanges of a bus.
//
//	var te *loraduplex.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Bus   string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Bus)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Wire trace (%d entries):\n", e.Bus, len(e.Trace))
	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", direction, formatHexBytes(entry.Data))
		}
	}
	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer keeps the most recent exchanges of a bus in a fixed-size ring
type TraceBuffer struct {
	bus     string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(bus string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		bus:     bus,
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// RecordTX records bytes sent to the device
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes received from the device
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:   err,
		Bus:   tb.bus,
		Trace: entriesCopy,
	}
}

// Len returns the number of buffered entries
func (tb *TraceBuffer) Len() int {
	return len(tb.entries)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
