// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"

	"github.com/devblok/umbra/gfx"
)

// Errors returned by the device context and resource primitives
var (
	ErrNoSuitableDevice     = errors.New("no suitable physical device")
	ErrNoMatchingMemoryType = errors.New("suitable memory type not found")
	ErrAlreadyDestroyed     = errors.New("resource already destroyed")
	ErrResourceLeak         = errors.New("resources alive at device destruction")
	ErrNotMapped            = errors.New("buffer is not mapped")
	ErrAlreadyMapped        = errors.New("buffer is already mapped")

	// ErrDeviceLost is also returned when a bounded wait on the GPU times out.
	ErrDeviceLost = gfx.ErrDeviceLost
)
