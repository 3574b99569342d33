package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/0xRadioAc7iv/go-rmp/internal/record"
)

var ErrEmptyLine = errors.New("empty command line")

// SplitCommandLine splits a shell line into words, honouring quotes and
// backslash escapes the way a POSIX shell would.
func SplitCommandLine(line string) ([]string, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyLine
	}
	return words, nil
}

// ParseAttributes turns name=value words into attributes. A repeated name
// keeps the last value.
func ParseAttributes(words []string) (record.Attributes, error) {
	attrs := make(record.Attributes, len(words))
	for _, w := range words {
		name, value, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q is not in name=value form", w)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("attribute %q has an empty name", w)
		}
		attrs[name] = value
	}
	return attrs, nil
}
