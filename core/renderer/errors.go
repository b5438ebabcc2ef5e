// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import "errors"

// Errors returned by the renderer
var (
	ErrInvalidHandle            = errors.New("invalid resource handle")
	ErrRegistryFull             = errors.New("resource registry is full")
	ErrMultipleDepthAttachments = errors.New("more than one depth/stencil attachment")
	ErrMissingDepthAttachment   = errors.New("no depth/stencil attachment")
	ErrSeparatePresentQueue     = errors.New("no queue family supports both graphics and presentation")
	ErrSurfaceHidden            = errors.New("surface has no area")
	ErrSwapchainState           = errors.New("operation not allowed in swapchain state")
)
