package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
)

// Reader supplies one answer per ReadString call
type Reader interface {
	ReadString(delim byte) (string, error)
}

// LineReader reads answers from a stream, one per line
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader buffers r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReader(r)}
}

// NewStdinReader reads answers from the terminal
func NewStdinReader() *LineReader {
	return NewLineReader(os.Stdin)
}

func (r *LineReader) ReadString(delim byte) (string, error) {
	return r.br.ReadString(delim)
}

// StringReader replays scripted answers, then reports io.EOF. An answer
// without a trailing newline gets one.
type StringReader struct {
	answers []string
}

func NewStringReader(answers ...string) *StringReader {
	return &StringReader{answers: answers}
}

func (r *StringReader) ReadString(delim byte) (string, error) {
	if len(r.answers) == 0 {
		return "", io.EOF
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	if !strings.HasSuffix(a, string(delim)) {
		a += string(delim)
	}
	return a, nil
}

// Ask writes prompt to w and returns the trimmed answer. End of input with
// nothing typed is a cancellation.
func Ask(r Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	answer, err := r.ReadString('\n')
	if err != nil && answer == "" {
		return "", errors.ErrCancelled
	}
	return strings.TrimSpace(answer), nil
}
