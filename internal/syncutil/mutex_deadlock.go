//go:build deadlock

// Package syncutil provides the mutex types guarding shared hardware state
// (the SPI bridge, the line registry, the transceiver registry).
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex so lock-order inversions between the bridge
// and the registries are reported.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}
