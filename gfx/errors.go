// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "errors"

// Results that callers are expected to tell apart
var (
	ErrOutOfDate         = errors.New("swapchain out of date")
	ErrSuboptimal        = errors.New("swapchain suboptimal")
	ErrTimeout           = errors.New("wait timed out")
	ErrDeviceLost        = errors.New("device lost")
	ErrOutOfDeviceMemory = errors.New("out of device memory")
	ErrOutOfHostMemory   = errors.New("out of host memory")
	ErrUnknownHandle     = errors.New("unknown handle")
)
