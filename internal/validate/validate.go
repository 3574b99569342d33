// Package validate checks the structure of a decoded record for a command
// before it reaches storage.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
)

// MaxKeyLength bounds record keys in bytes.
const MaxKeyLength = 1024

// DefaultRequired lists the attributes every CREATE must carry.
var DefaultRequired = []string{"name", "phone"}

// Schema describes which attributes are mandatory at creation.
type Schema struct {
	Required []string
}

// DefaultSchema returns a Schema requiring DefaultRequired.
func DefaultSchema() Schema {
	return Schema{Required: append([]string(nil), DefaultRequired...)}
}

// Error is a validation failure. Its message is sent back to the client as is.
type Error struct {
	Command protocol.Command
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s request: %s", e.Command, e.Reason)
}

// Validate checks rec against the requirements of cmd. It never blocks and
// never touches storage.
func Validate(cmd protocol.Command, rec record.Record, schema Schema) error {
	fail := func(format string, args ...any) error {
		return &Error{Command: cmd, Reason: fmt.Sprintf(format, args...)}
	}

	if !cmd.Valid() {
		return fail("unknown command code %d", uint8(cmd))
	}
	if rec.Key == "" {
		return fail("key is required")
	}
	if len(rec.Key) > MaxKeyLength {
		return fail("key exceeds %d bytes", MaxKeyLength)
	}
	if !utf8.ValidString(rec.Key) {
		return fail("key must be valid UTF-8")
	}

	switch cmd {
	case protocol.Create:
		if rec.Attributes == nil {
			return fail("attributes are required")
		}
		var missing []string
		for _, name := range schema.Required {
			if rec.Attributes[name] == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fail("missing required attributes: %s", strings.Join(missing, ", "))
		}
	case protocol.Update:
		if len(rec.Attributes) == 0 {
			return fail("at least one attribute is required")
		}
	case protocol.Read, protocol.Delete:
		return nil
	}

	for name := range rec.Attributes {
		if name == "" {
			return fail("attribute names must not be empty")
		}
	}

	return nil
}

// Body rejects a raw request body that is not valid UTF-8. JSON decoding
// would otherwise replace the bad bytes with U+FFFD and distinct keys could
// land on the same record.
func Body(cmd protocol.Command, body []byte) error {
	if !utf8.Valid(body) {
		return &Error{Command: cmd, Reason: "body must be valid UTF-8"}
	}
	return nil
}
