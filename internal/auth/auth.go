// Package auth guards the process-scope store socket with a per-run token.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token []byte) error
}

// RunToken is the shared secret handed to every process of one run.
type RunToken []byte

// NewRunToken returns a fresh random token.
func NewRunToken() RunToken {
	return RunToken(uuid.NewString())
}

func (r RunToken) Validate(token []byte) error {
	if len(r) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(r, token) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (r RunToken) String() string {
	return string(r)
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token []byte) error

func (f FuncValidator) Validate(token []byte) error {
	return f(token)
}
