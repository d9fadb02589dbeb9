package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/marketdb/internal/query"
)

var (
	// ErrNotFound is returned by Update and Delete when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownModel is returned for model names outside the schema.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateKey is returned by Create when a record with the same key
	// already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMissingKey is returned when a record lacks a value for a key field.
	ErrMissingKey = errors.New("missing key field")

	// ErrImmutableField is returned when an update patch changes a key field.
	ErrImmutableField = errors.New("key field is immutable")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("client is closed")
)

// Error records the operation and model of a failed call.
type Error struct {
	Op    string
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Model, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in an *Error, or nil when err is nil. An error
// that is already an *Error is returned unchanged.
func Wrap(op, model string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Op: op, Model: model, Err: err}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Error kinds reported by Kind.
const (
	KindNotFound       = "not_found"
	KindUnknownModel   = "unknown_model"
	KindDuplicateKey   = "duplicate_key"
	KindMissingKey     = "missing_key"
	KindImmutableField = "immutable_field"
	KindClosed         = "closed"
	KindInvalidFilter  = "invalid_filter"
	KindInvalidOrder   = "invalid_order"
	KindUnknownOp      = "unknown_op"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)

// Kind classifies err for machine-readable output. It returns "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnknownModel):
		return KindUnknownModel
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrMissingKey):
		return KindMissingKey
	case errors.Is(err, ErrImmutableField):
		return KindImmutableField
	case errors.Is(err, ErrClosed):
		return KindClosed
	case errors.Is(err, query.ErrInvalidExpr):
		return KindInvalidFilter
	case errors.Is(err, query.ErrInvalidOrder):
		return KindInvalidOrder
	case errors.Is(err, ErrUnknownOp):
		return KindUnknownOp
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}
