package studio

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced to the user.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindValidation Kind = "validation"
	KindCapacity   Kind = "capacity"
	KindRequest    Kind = "request"
	KindCredential Kind = "credential"
	KindNotFound   Kind = "not_found"
)

var (
	ErrMissingSubject     = errors.New("at least one subject image is required")
	ErrInvalidBatchSize   = errors.New("invalid batch size")
	ErrCapacity           = errors.New("too many generations in progress; wait for one to finish")
	ErrNoImage            = errors.New("no image to work on; generate one first")
	ErrMissingInstruction = errors.New("an instruction is required")
	ErrInvalidHeight      = errors.New("target height must be positive")
	ErrCredentialRequired = errors.New("an API key must be selected")
	ErrTabNotFound        = errors.New("tab not found")
	ErrReferenceNotFound  = errors.New("reference not found")
	ErrNoDescriber        = errors.New("no reference describer configured")
)

// CredentialMessage replaces the provider text when a key is rejected.
const CredentialMessage = "The API key is invalid or has expired. Select a valid key and try again."

// credentialMarker is the provider text that signals an unknown or revoked key.
const credentialMarker = "Requested entity was not found"

// Error is a classified, user-facing failure. Message replaces any previous error shown.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "studio error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("studio %s error", e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) && se != nil {
		return se.Kind
	}
	return KindUnknown
}

// IsCredentialFailure reports whether a provider error means the key was rejected.
func IsCredentialFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), credentialMarker)
}
