package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrFieldTypeMismatch   = errors.New("protocol: field type mismatch")
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
	ErrUnknownMessageType  = errors.New("protocol: unknown message type")
	ErrUnsupportedValue    = errors.New("protocol: unsupported value type")
	ErrInvalidValue        = errors.New("protocol: invalid encoded value")
	ErrMessageIDMismatch   = errors.New("protocol: response message id mismatch")
)

// MissingFieldError indicates a required field was not present.
type MissingFieldError struct {
	MessageType MessageType
	FieldID     uint16
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("protocol: %s missing required field %d", e.MessageType, e.FieldID)
}
