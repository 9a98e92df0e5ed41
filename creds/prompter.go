package creds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Prompter asks on a terminal, or reads one line per answer when input is
// piped.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewPrompter reads answers from in and writes prompts to out. Interactive
// prompts are used only when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Identifier asks for an email address or phone number.
func (p *Prompter) Identifier(ctx context.Context) (string, error) {
	return p.ask(ctx, "Email address or mobile number")
}

// Secret asks for the password. On a terminal the input is not echoed.
func (p *Prompter) Secret(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !p.tty {
		return p.line("Password")
	}
	if _, err := fmt.Fprint(p.out, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// Code asks for a one-time code.
//
// - attempt is the 1-based attempt number
// - max is the attempt budget, shown in the prompt
func (p *Prompter) Code(ctx context.Context, attempt, max int) (string, error) {
	return p.ask(ctx, fmt.Sprintf("Verification code (attempt %d/%d)", attempt, max))
}

// Notify prints msg as a warning.
func (p *Prompter) Notify(msg string) {
	if p.tty {
		pterm.Warning.Println(msg)
		return
	}
	fmt.Fprintln(p.out, msg)
}

func (p *Prompter) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.tty {
		answer, err := pterm.DefaultInteractiveTextInput.Show(prompt)
		if err != nil {
			return "", fmt.Errorf("prompting: %w", err)
		}
		return strings.TrimSpace(answer), nil
	}
	return p.line(prompt)
}

// line prints prompt and reads a single line. A final line without a
// newline is still returned.
func (p *Prompter) line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+"\n> "); err != nil {
		return "", err
	}
	s, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if s != "" {
				return strings.TrimSpace(s), nil
			}
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}
