package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the fixed width of both request and response headers.
//
//	----------------------------------------------
//	| code(1) | padding(3) | body_size(4, BE) |
//	----------------------------------------------
const HeaderSize = 8

// DefaultMaxBodySize caps the body a decoder will allocate for.
const DefaultMaxBodySize = 16 * 1024 * 1024

const (
	OpHeader = "read header"
	OpBody   = "read body"
)

var (
	ErrShortRead    = errors.New("short read")
	ErrBodyTooLarge = errors.New("body exceeds maximum size")
)

// ProtocolError reports a malformed or incomplete frame. Op tells whether the
// header itself was unreadable (OpHeader) or only the body (OpBody).
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// header is the on-wire layout shared by requests and responses.
// binary.Write zero-fills the blank padding and binary.Read skips it.
type header struct {
	Code     uint8
	_        [3]byte
	BodySize uint32
}

func encodeFrame(code uint8, body []byte) ([]byte, error) {
	if uint64(len(body)) > math.MaxUint32 {
		return nil, fmt.Errorf("protocol: body of %d bytes does not fit in a frame", len(body))
	}

	buf := &bytes.Buffer{}
	buf.Grow(HeaderSize + len(body))

	h := header{Code: code, BodySize: uint32(len(body))}
	if err := binary.Write(buf, binary.BigEndian, &h); err != nil {
		return nil, err
	}
	buf.Write(body)

	return buf.Bytes(), nil
}

// decodeFrame blocks until the full header and then exactly BodySize more
// bytes have been read from r.
func decodeFrame(r io.Reader, maxBody uint32) (uint8, []byte, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, nil, &ProtocolError{Op: OpHeader, Err: shortRead(err, false)}
	}

	var h header
	if err := binary.Read(bytes.NewReader(raw), binary.BigEndian, &h); err != nil {
		return 0, nil, &ProtocolError{Op: OpHeader, Err: err}
	}

	if maxBody > 0 && h.BodySize > maxBody {
		return h.Code, nil, &ProtocolError{
			Op:  OpBody,
			Err: fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, h.BodySize, maxBody),
		}
	}

	body := make([]byte, h.BodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return h.Code, nil, &ProtocolError{Op: OpBody, Err: shortRead(err, true)}
	}

	return h.Code, body, nil
}

// shortRead marks a frame cut off mid-way. A clean EOF before the first
// header byte is left as io.EOF so callers can tell a peer that hung up.
func shortRead(err error, eofIsShort bool) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || (eofIsShort && errors.Is(err, io.EOF)) {
		return fmt.Errorf("%w: %w", ErrShortRead, err)
	}
	return err
}
