package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Command selects the operation a request performs.
type Command uint8

const (
	Create Command = iota
	Read
	Update
	Delete
)

var commandNames = [...]string{"create", "read", "update", "delete"}

func (c Command) String() string {
	if c.Valid() {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Valid reports whether c is one of the four known command codes.
func (c Command) Valid() bool {
	return int(c) < len(commandNames)
}

// ParseCommand maps a case-insensitive command name to its code.
func ParseCommand(name string) (Command, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Request is a decoded client request. Body holds the raw JSON record;
// decoding it is left to the caller so a malformed body can still be
// answered with an ERROR response.
type Request struct {
	Command Command
	Body    []byte
}

// EncodeRequest serializes a request into its wire format:
//
//	<command:uint8><padding:3><body_size:uint32><body>
//
// Integers are big-endian. The result can be written to a connection as is.
func EncodeRequest(cmd Command, body []byte) ([]byte, error) {
	return encodeFrame(uint8(cmd), body)
}

// WriteRequest encodes a request and writes it to w in a single call.
func WriteRequest(w io.Writer, cmd Command, body []byte) error {
	frame, err := EncodeRequest(cmd, body)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// DecodeRequest reads exactly one request from r.
//
// It blocks until the fixed header has been read and then until body_size
// more bytes have arrived. A body larger than maxBody (0 disables the check)
// is rejected before it is read. Unknown command codes are not an error
// here; see Command.Valid.
func DecodeRequest(r io.Reader, maxBody uint32) (*Request, error) {
	code, body, err := decodeFrame(r, maxBody)
	if err != nil {
		return nil, err
	}

	return &Request{Command: Command(code), Body: body}, nil
}
