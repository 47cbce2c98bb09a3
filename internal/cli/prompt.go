package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Prompter asks questions on a terminal and reads the answers, giving up
// when the context is canceled.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	// tty is set when input comes from a terminal, so secrets are read
	// without echo.
	tty *os.File
	mu  sync.Mutex
}

// NewPrompter reads answers from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		panic("reader cannot be nil")
	}
	if out == nil {
		out = io.Discard
	}
	p := &Prompter{reader: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = f
	}
	return p
}

// ReadLine reads one trimmed line, respecting context cancellation.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		value, err := p.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		// The reading goroutine finishes on its own when input arrives.
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.value != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

// Ask shows question and returns the answer. Empty answers are rejected
// when required is set.
func (p *Prompter) Ask(ctx context.Context, question string, required bool) (string, error) {
	for {
		fmt.Fprint(p.out, FormatPrompt(question))
		answer, err := p.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if answer != "" || !required {
			return answer, nil
		}
		fmt.Fprintln(p.out, FormatWarning("A value is required"))
	}
}

// Confirm asks a yes/no question. Anything but y or yes (also s or sim)
// counts as no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.out, FormatPrompt(question+" [y/N]"))
	answer, err := p.ReadLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "s", "sim":
		return true, nil
	default:
		return false, nil
	}
}

// AskSecret reads a value without echoing it when input is a terminal.
// Empty secrets are rejected.
func (p *Prompter) AskSecret(ctx context.Context, question string) (string, error) {
	if p.tty == nil {
		return p.Ask(ctx, question, true)
	}

	for {
		fmt.Fprint(p.out, FormatPrompt(question))
		secret, err := p.readHidden(ctx)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		if secret != "" {
			return secret, nil
		}
		fmt.Fprintln(p.out, FormatWarning("A value is required"))
	}
}

func (p *Prompter) readHidden(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value []byte
	}
	resultCh := make(chan result, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		value, err := term.ReadPassword(int(p.tty.Fd()))
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(string(res.value)), nil
	}
}
