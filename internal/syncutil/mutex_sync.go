//go:build !deadlock

// Package syncutil provides the mutex types guarding shared hardware state
// (the SPI bridge, the line registry, the transceiver registry).
// Plain sync types are used unless the module is built with -tags=deadlock,
// which swaps in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // embedding exposes the RWMutex method set directly
type RWMutex struct {
	sync.RWMutex
}
