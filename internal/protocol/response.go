package protocol

import (
	"fmt"
	"io"
)

// Status is the outcome selector of a response.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Response is a decoded server response. Body is a JSON record for a
// successful READ, empty for other successes and error text otherwise.
type Response struct {
	Status Status
	Body   []byte
}

// OK reports whether the response carries StatusOK.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

func EncodeResponse(status Status, body []byte) ([]byte, error) {
	return encodeFrame(uint8(status), body)
}

func WriteResponse(w io.Writer, status Status, body []byte) error {
	frame, err := EncodeResponse(status, body)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

func DecodeResponse(r io.Reader, maxBody uint32) (*Response, error) {
	code, body, err := decodeFrame(r, maxBody)
	if err != nil {
		return nil, err
	}

	return &Response{Status: Status(code), Body: body}, nil
}
