package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// Stage failure taxonomy. OCR failures are absorbed into an empty result
// set; embedding failures skip matching; index and store failures surface
// as the operation's failure.
var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrDecodeFailure    = errors.New("image decode failure")
	ErrInference        = errors.New("inference failure")
	ErrIndexUnavailable = errors.New("similarity index unavailable")
)
