package protocol

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded top-level field of a message body.
type field struct {
	num  protowire.Number
	typ  protowire.Type
	val  uint64
	data []byte
}

func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.val = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.data = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// oneField parses body and returns its single top-level field.
func oneField(family Family, body []byte) (field, error) {
	fields, err := parseFields(body)
	if err != nil {
		return field{}, withFamily(family, err)
	}
	switch len(fields) {
	case 0:
		return field{}, &DecodeError{Kind: ErrKindMissingVariant, Family: family}
	case 1:
		return fields[0], nil
	default:
		return field{}, &DecodeError{Kind: ErrKindMultipleVariants, Family: family, Field: fields[1].num}
	}
}

func unknownVariant(family Family, f field) error {
	return &DecodeError{Kind: ErrKindUnknownVariant, Family: family, Field: f.num}
}

func (f field) wireType(want protowire.Type) error {
	if f.typ != want {
		return fmt.Errorf("field %d: wire type %d, want %d", f.num, f.typ, want)
	}
	return nil
}

func (f field) uint64() (uint64, error) {
	if err := f.wireType(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.val, nil
}

func (f field) uint32() (uint32, error) {
	v, err := f.uint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("field %d: value %d overflows uint32", f.num, v)
	}
	return uint32(v), nil
}

func (f field) bool() (bool, error) {
	v, err := f.uint64()
	if err != nil {
		return false, err
	}
	return protowire.DecodeBool(v), nil
}

func (f field) string() (string, error) {
	if err := f.wireType(protowire.BytesType); err != nil {
		return "", err
	}
	if !utf8.Valid(f.data) {
		return "", fmt.Errorf("field %d: invalid UTF-8", f.num)
	}
	return string(f.data), nil
}

func (f field) message() ([]field, error) {
	if err := f.wireType(protowire.BytesType); err != nil {
		return nil, err
	}
	return parseFields(f.data)
}

// unit checks that a unit variant was sent as a varint.
func (f field) unit() error {
	return f.wireType(protowire.VarintType)
}

var errNilMessage = errors.New("protocol: encode nil message")

func appendUnit(b []byte, num protowire.Number) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
