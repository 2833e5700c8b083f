package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrStillGenerating = errors.New("still generating")
	ErrRenderTimeout   = errors.New("render timed out")
	ErrRenderFailure   = errors.New("render failure")
	ErrStorage         = errors.New("storage failure")
)
