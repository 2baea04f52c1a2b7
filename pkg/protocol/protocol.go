// Package protocol implements the framed binary message protocol spoken
// between the game client and server.
//
// Every message is sent as one frame: an unsigned varint byte length
// followed by a body in protobuf wire format. The body holds exactly one
// top-level field whose field number selects the message variant, so each
// message family is a strict tagged union. Frames that carry no variant,
// more than one variant, or an unknown variant are rejected with a
// *DecodeError.
//
// There are four message families:
//
//	EntryPoint    client -> server during the handshake
//	EntryResponse server -> client during the handshake
//	ClientEvent   client -> server once a session is established
//	ServerEvent   server -> client once a session is established
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds the body length of a single frame.
const MaxFrameSize = 64 << 10

// Family identifies one of the four message families.
type Family int

const (
	FamilyEntryPoint Family = iota + 1
	FamilyEntryResponse
	FamilyClientEvent
	FamilyServerEvent
)

func (f Family) String() string {
	switch f {
	case FamilyEntryPoint:
		return "EntryPoint"
	case FamilyEntryResponse:
		return "EntryResponse"
	case FamilyClientEvent:
		return "ClientEvent"
	case FamilyServerEvent:
		return "ServerEvent"
	default:
		return "frame"
	}
}

// Message is implemented by every message variant of every family.
type Message interface {
	Family() Family
	appendTo(b []byte) ([]byte, error)
}

// EncodeBody returns the unframed body of m.
func EncodeBody(m Message) ([]byte, error) {
	if m == nil {
		return nil, errNilMessage
	}
	return m.appendTo(nil)
}

// Encode returns m as a complete frame (length prefix plus body).
func Encode(m Message) ([]byte, error) {
	body, err := EncodeBody(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFrameSize {
		return nil, fmt.Errorf("protocol: %s body of %d bytes exceeds %d", m.Family(), len(body), MaxFrameSize)
	}
	frame := binary.AppendUvarint(make([]byte, 0, len(body)+binary.MaxVarintLen32), uint64(len(body)))
	return append(frame, body...), nil
}

// WriteMessage encodes m and writes it to w in a single Write call.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one frame from r and returns its body.
// If r does not implement io.ByteReader the length prefix is read one byte
// at a time, so callers reading many frames should pass a *bufio.Reader.
func ReadFrame(r io.Reader) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = singleByteReader{r}
	}
	size, err := binary.ReadUvarint(br)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, &DecodeError{Kind: ErrKindIO, Err: io.EOF}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &DecodeError{Kind: ErrKindTruncated, Err: err}
		case isOverflow(err):
			return nil, &DecodeError{Kind: ErrKindFrameTooLarge, Err: err}
		default:
			return nil, &DecodeError{Kind: ErrKindIO, Err: err}
		}
	}
	if size > MaxFrameSize {
		return nil, &DecodeError{Kind: ErrKindFrameTooLarge, Err: fmt.Errorf("frame length %d exceeds %d", size, MaxFrameSize)}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{Kind: ErrKindTruncated, Err: io.ErrUnexpectedEOF}
		}
		return nil, &DecodeError{Kind: ErrKindIO, Err: err}
	}
	return body, nil
}

// NewReader returns a buffered reader suitable for repeated ReadFrame calls.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 4096)
}

// ReadEntryPoint reads and decodes one EntryPoint frame.
func ReadEntryPoint(r io.Reader) (EntryPoint, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, withFamily(FamilyEntryPoint, err)
	}
	return DecodeEntryPoint(body)
}

// ReadEntryResponse reads and decodes one EntryResponse frame.
func ReadEntryResponse(r io.Reader) (EntryResponse, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, withFamily(FamilyEntryResponse, err)
	}
	return DecodeEntryResponse(body)
}

// ReadClientEvent reads and decodes one ClientEvent frame.
func ReadClientEvent(r io.Reader) (ClientEvent, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, withFamily(FamilyClientEvent, err)
	}
	return DecodeClientEvent(body)
}

// ReadServerEvent reads and decodes one ServerEvent frame.
func ReadServerEvent(r io.Reader) (ServerEvent, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, withFamily(FamilyServerEvent, err)
	}
	return DecodeServerEvent(body)
}

type singleByteReader struct {
	r io.Reader
}

func (s singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func isOverflow(err error) bool {
	// encoding/binary does not export its overflow error.
	return err != nil && err.Error() == "binary: varint overflows a 64-bit integer"
}
