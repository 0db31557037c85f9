package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal JSON message")
	ErrInvalidFrame        = errors.New("invalid sample frame")
)
