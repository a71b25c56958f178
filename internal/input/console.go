package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
)

// ErrInterrupted is returned by Next when an interrupt arrives at the
// top-level prompt.
var ErrInterrupted = fmt.Errorf("interrupted")

const escape = "\x1b"

type line struct {
	text string
	err  error
}

// Console reads operator input line by line while listening for interrupts.
// It has two cancellation scopes: an interrupt at the top-level prompt (Next)
// ends the session, while an interrupt, ESC or an empty answer inside a
// sub-prompt (Prompt) cancels only that answer.
//
// A reader goroutine feeds lines for the life of the process; it is not
// stopped when the console is dropped.
type Console struct {
	out        io.Writer
	lines      chan line
	interrupts <-chan os.Signal
}

// NewConsole starts reading r. Prompts are written to out. interrupts may be
// nil when the caller does not forward signals.
func NewConsole(r io.Reader, out io.Writer, interrupts <-chan os.Signal) *Console {
	c := &Console{
		out:        out,
		lines:      make(chan line),
		interrupts: interrupts,
	}
	go c.read(bufio.NewReader(r))
	return c
}

func (c *Console) read(br *bufio.Reader) {
	for {
		s, err := br.ReadString('\n')
		if s != "" {
			c.lines <- line{text: strings.TrimRight(s, "\r\n")}
		}
		if err != nil {
			c.lines <- line{err: err}
			close(c.lines)
			return
		}
	}
}

func (c *Console) wait(prompt string) (line, bool) {
	fmt.Fprint(c.out, prompt)
	select {
	case l, ok := <-c.lines:
		if !ok {
			return line{err: io.EOF}, false
		}
		return l, false
	case <-c.interrupts:
		fmt.Fprintln(c.out)
		return line{}, true
	}
}

// drain discards interrupts that arrived while no prompt was waiting
func (c *Console) drain() {
	for {
		select {
		case <-c.interrupts:
		default:
			return
		}
	}
}

// Next reads a top-level command line. It returns ErrInterrupted on an
// interrupt and io.EOF once input is exhausted. Interrupts received while a
// command was running are dropped.
func (c *Console) Next(prompt string) (string, error) {
	c.drain()
	l, interrupted := c.wait(prompt)
	if interrupted {
		return "", ErrInterrupted
	}
	if l.err != nil {
		return "", l.err
	}
	return strings.TrimSpace(l.text), nil
}

// Prompt reads an answer inside a sub-prompt. An interrupt, ESC, an empty
// answer or end of input yield errors.ErrCancelled.
func (c *Console) Prompt(prompt string) (string, error) {
	l, interrupted := c.wait(prompt)
	if interrupted || l.err != nil {
		return "", errors.ErrCancelled
	}
	answer := strings.TrimSpace(l.text)
	if answer == "" || strings.Contains(answer, escape) {
		return "", errors.ErrCancelled
	}
	return answer, nil
}

// Confirm asks a yes/no question and returns def on an empty answer.
func (c *Console) Confirm(prompt string, def bool) (bool, error) {
	l, interrupted := c.wait(prompt)
	if interrupted || l.err != nil {
		return false, errors.ErrCancelled
	}
	return parseYesNo(l.text, def), nil
}

// Confirm reads a yes/no answer from r. Anything other than y/yes is a no,
// and an empty answer or read error returns def.
func Confirm(r Reader, def bool) bool {
	answer, err := r.ReadString('\n')
	if err != nil && answer == "" {
		return def
	}
	return parseYesNo(answer, def)
}

func parseYesNo(answer string, def bool) bool {
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "" {
		return def
	}
	return answer == "y" || answer == "yes"
}
