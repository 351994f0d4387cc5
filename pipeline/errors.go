package pipeline

import "errors"

var (
	ErrUnsupportedDevice = errors.New("pipeline: device lacks float texture or float color buffer support")
	ErrContextDestroyed  = errors.New("pipeline: context destroyed")
	ErrReleased          = errors.New("pipeline: handle already released")
	ErrInvalidOptions    = errors.New("pipeline: invalid generate options")
	ErrQueueClosed       = errors.New("pipeline: queue closed")
)
