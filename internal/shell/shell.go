// Package shell implements the interactive line-oriented front end of the
// record client.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0xRadioAc7iv/go-rmp/internal/protocol"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
	"github.com/0xRadioAc7iv/go-rmp/internal/utils"
)

const (
	Prompt = "> "

	helpText = `commands:
  create <key> [name=value ...]   store a new record
  read   <key>                    print a record
  update <key> [name=value ...]   change some attributes of a record
  delete <key>                    remove a record
  help                            show this text
  exit                            quit
missing arguments are prompted for; quote values containing spaces`
)

// Executor runs one command against the server.
type Executor interface {
	Execute(cmd protocol.Command, key string, attrs record.Attributes) (bool, string)
}

type Shell struct {
	exec     Executor
	in       *bufio.Reader
	out      io.Writer
	required []string
}

// New returns a shell reading lines from in and writing to out. required
// lists the attributes prompted for on create.
func New(exec Executor, in io.Reader, out io.Writer, required []string) *Shell {
	return &Shell{
		exec:     exec,
		in:       bufio.NewReader(in),
		out:      out,
		required: required,
	}
}

// Run reads commands until "exit" or end of input. Errors are only returned
// for failures of the input itself.
func (s *Shell) Run() error {
	for {
		fmt.Fprint(s.out, Prompt)

		line, err := s.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := s.handle(line)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) handle(line string) (bool, error) {
	words, err := utils.SplitCommandLine(line)
	if errors.Is(err, utils.ErrEmptyLine) {
		return false, nil
	}
	if err != nil {
		fmt.Fprintln(s.out, "parse error:", err)
		return false, nil
	}

	switch strings.ToLower(words[0]) {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(s.out, helpText)
		return false, nil
	}

	cmd, err := protocol.ParseCommand(words[0])
	if err != nil {
		fmt.Fprintf(s.out, "%v, type 'help' for the list\n", err)
		return false, nil
	}

	key, attrs, ok, err := s.arguments(cmd, words[1:])
	if err != nil || !ok {
		return false, err
	}

	s.printResult(s.exec.Execute(cmd, key, attrs))
	return false, nil
}

// arguments collects the key and attributes for cmd from the inline words,
// prompting for whatever is missing. ok is false when the input was rejected
// and already reported.
func (s *Shell) arguments(cmd protocol.Command, words []string) (key string, attrs record.Attributes, ok bool, err error) {
	if len(words) > 0 {
		key, words = words[0], words[1:]
	} else if key, err = s.ask("key: "); err != nil {
		return "", nil, false, err
	}

	if cmd == protocol.Read || cmd == protocol.Delete {
		if len(words) > 0 {
			fmt.Fprintf(s.out, "%s takes only a key\n", cmd)
			return "", nil, false, nil
		}
		return key, nil, true, nil
	}

	if len(words) > 0 {
		attrs, err = utils.ParseAttributes(words)
		if err != nil {
			fmt.Fprintln(s.out, "parse error:", err)
			return "", nil, false, nil
		}
		return key, attrs, true, nil
	}

	attrs = record.Attributes{}
	if cmd == protocol.Create {
		for _, name := range s.required {
			v, err := s.ask(name + ": ")
			if err != nil {
				return "", nil, false, err
			}
			attrs[name] = v
		}
	}

	line, err := s.ask("attributes (name=value ...): ")
	if err != nil {
		return "", nil, false, err
	}
	more, err := s.parseAttributeLine(line)
	if err != nil {
		fmt.Fprintln(s.out, "parse error:", err)
		return "", nil, false, nil
	}
	for name, v := range more {
		attrs[name] = v
	}

	return key, attrs, true, nil
}

func (s *Shell) parseAttributeLine(line string) (record.Attributes, error) {
	words, err := utils.SplitCommandLine(line)
	if errors.Is(err, utils.ErrEmptyLine) {
		return record.Attributes{}, nil
	}
	if err != nil {
		return nil, err
	}
	return utils.ParseAttributes(words)
}

func (s *Shell) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	return s.readLine()
}

// readLine returns the next line without its terminator. A final line
// without a newline is still returned.
func (s *Shell) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Shell) printResult(ok bool, msg string) {
	if !ok {
		fmt.Fprintln(s.out, "error:", msg)
		return
	}
	if msg == "" {
		fmt.Fprintln(s.out, "ok")
		return
	}
	fmt.Fprintln(s.out, "ok", msg)
}
