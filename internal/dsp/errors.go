package dsp

import "errors"

var (
	ErrInvalidChannels    = errors.New("channel count must be positive")
	ErrMalformedBuffer    = errors.New("buffer length is not a multiple of the channel count")
	ErrStageCountMismatch = errors.New("persisted stage count does not match pipeline")
	ErrStageTypeMismatch  = errors.New("persisted stage type does not match pipeline")
	ErrProcessingFailed   = errors.New("pipeline processing failed")
	ErrMalformedSnapshot  = errors.New("malformed pipeline snapshot")
)
