package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrTotalMismatch   = errors.New("chunk total changed mid-transfer")
	ErrIndexOutOfRange = errors.New("chunk index out of range")
	ErrInvalidTotal    = errors.New("invalid chunk total")
	ErrEmptyChunk      = errors.New("empty chunk")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrInvalidFile     = errors.New("invalid file")
	ErrInvalidDataURL  = errors.New("invalid data URL")
)

// TransferError aborts a single named transfer. The session stays up.
type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" && e.Details != "" {
		return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.File, e.Err, e.Details)
	}
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapFileError(op, file string, err error, details string) *TransferError {
	return &TransferError{Op: op, File: file, Err: err, Details: details}
}
