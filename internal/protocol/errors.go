package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortHeader        = errors.New("protocol: datagram shorter than header")
	ErrInvalidMagic       = errors.New("protocol: invalid magic")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrUnknownFormat      = errors.New("protocol: unknown data format")
	ErrTruncated          = errors.New("protocol: truncated path data")
	ErrTooManyMetaData    = errors.New("protocol: too many metadata entries")
	ErrTooManyPoints      = errors.New("protocol: too many points")
)

// DecodeError reports where in a frame body decoding stopped.
type DecodeError struct {
	Path   int // index of the path being decoded
	Offset int // byte offset of the field that failed
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode path %d at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports which path could not be serialized.
type EncodeError struct {
	Path int
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("protocol: encode path %d: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
