package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// ErrDeviceLost is unrecoverable: a completion signal never arrived or the driver went away.
	ErrDeviceLost = errors.New("render device lost")

	ErrWouldBlock   = errors.New("no free transient region without waiting on the GPU")
	ErrNotSignaled  = errors.New("frame completion signal has not fired")
	ErrUnknownFrame = errors.New("unknown frame token")
	ErrRegionState  = errors.New("transient region in wrong state")

	// ErrPoolExhausted means the current frame alone claimed every region the
	// allocator may create; waiting on the GPU cannot help.
	ErrPoolExhausted = errors.New("transient pool exhausted")

	ErrInvalidAsset = errors.New("invalid asset")
)
