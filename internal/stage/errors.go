package stage

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid stage configuration")
	ErrInvalidInput       = errors.New("invalid stage input")
	ErrUnknownStageType   = errors.New("unknown stage type")
	ErrDuplicateStageType = errors.New("duplicate stage type")
	ErrModeMismatch       = errors.New("stage mode mismatch")
	ErrWindowSizeMismatch = errors.New("stage window size mismatch")
	ErrParamMismatch      = errors.New("stage parameter mismatch")
	ErrStateCorruption    = errors.New("stage state failed validation")
	ErrMalformedState     = errors.New("malformed stage state")
)
