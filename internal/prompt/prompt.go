// Package prompt reads passwords from a terminal without echo, or line by line
// when input is redirected.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmpty is returned when no password was entered.
var ErrEmpty = errors.New("prompt: empty password")

// Reader asks for passwords repeatedly on the same input. When the input is
// not a terminal, buffered lines survive between calls.
type Reader struct {
	in  *os.File
	out io.Writer
	buf *bufio.Reader
}

// NewReader returns a Reader prompting on out and reading from in.
func NewReader(in *os.File, out io.Writer) *Reader {
	return &Reader{in: in, out: out}
}

// Password asks for a password. On a terminal the label is written to out and
// the input is masked; otherwise the next line is read from in.
func (p *Reader) Password(label string) (string, error) {
	fd := int(p.in.Fd())
	if term.IsTerminal(fd) {
		if _, err := fmt.Fprint(p.out, label); err != nil {
			return "", err
		}
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return nonEmpty(string(b))
	}
	if p.buf == nil {
		p.buf = bufio.NewReader(p.in)
	}
	return Line(p.buf)
}

// Password asks for a single password on in. Use a Reader to ask more than once.
func Password(in *os.File, out io.Writer, label string) (string, error) {
	return NewReader(in, out).Password(label)
}

// Line reads a single line from r, without the line terminator. Pass a
// *bufio.Reader to read consecutive lines.
func Line(r io.Reader) (string, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return nonEmpty(strings.TrimRight(line, "\r\n"))
}

func nonEmpty(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	return s, nil
}
