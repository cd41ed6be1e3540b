package metadata

import (
	"errors"
	"time"
)

var ErrSignalTimeout = errors.New("timed out waiting for frame completion")

// FrameSignal reports when the GPU has finished a submitted frame.
// It is the only view the CPU has of GPU progress.
type FrameSignal interface {
	// Signaled polls without blocking.
	Signaled() (bool, error)
	// Wait blocks until the frame completes or timeout elapses, in which
	// case it returns ErrSignalTimeout.
	Wait(timeout time.Duration) error
}

// CameraUniforms is the layout of the camera binding.
type CameraUniforms struct {
	View       [16]float32
	Projection [16]float32
}
