package protocol

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrorKind classifies a DecodeError.
type ErrorKind int

const (
	ErrKindIO ErrorKind = iota + 1
	ErrKindTruncated
	ErrKindFrameTooLarge
	ErrKindUnknownVariant
	ErrKindMissingVariant
	ErrKindMultipleVariants
	ErrKindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindIO:
		return "i/o error"
	case ErrKindTruncated:
		return "truncated frame"
	case ErrKindFrameTooLarge:
		return "frame too large"
	case ErrKindUnknownVariant:
		return "unknown variant"
	case ErrKindMissingVariant:
		return "no variant set"
	case ErrKindMultipleVariants:
		return "multiple variants set"
	case ErrKindMalformed:
		return "malformed body"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// DecodeError reports a frame that could not be read or decoded.
// A clean end of stream before any byte of a frame satisfies
// errors.Is(err, io.EOF).
type DecodeError struct {
	Kind   ErrorKind
	Family Family
	Field  protowire.Number // offending field, when known
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("protocol: decode %s: %s", e.Family, e.Kind)
	if e.Field != 0 {
		msg += fmt.Sprintf(" (field %d)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsEOF reports whether err is a clean end of the stream.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// withFamily tags err with family, converting plain errors into a
// DecodeError of the matching kind.
func withFamily(family Family, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Family == 0 {
			de.Family = family
		}
		return de
	}
	kind := ErrKindMalformed
	if errors.Is(err, io.ErrUnexpectedEOF) {
		kind = ErrKindTruncated
	}
	return &DecodeError{Kind: kind, Family: family, Err: err}
}
