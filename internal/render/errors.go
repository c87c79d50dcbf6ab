package render

import (
	"errors"
	"fmt"
)

// Failure kinds, matched with errors.Is.
var (
	ErrDecode   = errors.New("base image cannot be decoded")
	ErrSurface  = errors.New("output surface cannot be allocated")
	ErrMapFetch = errors.New("map thumbnail cannot be fetched")
	ErrEncode   = errors.New("output cannot be encoded")
)

// Error is a failed render of one image.
type Error struct {
	// Stage is a short label: decode, surface, map or encode.
	Stage string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("render %s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("render %s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the failure kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func decodeError(err error) error  { return &Error{Stage: "decode", Kind: ErrDecode, Err: err} }
func surfaceError(err error) error { return &Error{Stage: "surface", Kind: ErrSurface, Err: err} }
func mapError(err error) error     { return &Error{Stage: "map", Kind: ErrMapFetch, Err: err} }
func encodeError(err error) error  { return &Error{Stage: "encode", Kind: ErrEncode, Err: err} }

// StageOf returns the stage label of a render error, or "" for other errors.
func StageOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}
