// Package prompt completes resource parameters that require operator
// input. Interaction is isolated behind ValueProvider so command code
// and tests can substitute a scripted source for the real terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rflorenc/awxctl/internal/resource"
)

// ValueProvider obtains values for fields interactively.
type ValueProvider interface {
	// Available reports whether the provider can actually ask. A
	// non-interactive environment (no attached terminal) returns false.
	Available() bool
	// Ask blocks until the operator supplies a value for the field.
	Ask(field resource.Field) (string, error)
}

// MissingValueError names required fields that could not be resolved
// because the environment is non-interactive.
type MissingValueError struct {
	Fields []string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing required value(s) for: %s (no terminal attached to prompt)",
		strings.Join(e.Fields, ", "))
}

// Resolve validates supplied values against the field schema and
// completes every required-but-unset field and every field whose
// effective value is the ASK marker. Fields are walked in declaration
// order, so the prompt sequence is deterministic.
//
// This is the only place the invocation may block on operator input.
func Resolve(fields []resource.Field, supplied map[string]string, provider ValueProvider) (map[string]string, error) {
	resolved := make(map[string]string, len(supplied))
	var missing []string

	for _, f := range fields {
		value, wasSupplied := supplied[f.Name]
		if wasSupplied {
			if err := f.Validate(value); err != nil {
				return nil, err
			}
		} else {
			value = f.Default
		}

		needsInput := value == resource.AskMarker || (f.Required && value == "")
		if needsInput {
			if provider == nil || !provider.Available() {
				missing = append(missing, f.Name)
				continue
			}
			answer, err := provider.Ask(f)
			if err != nil {
				return nil, fmt.Errorf("prompting for %s: %w", f.Name, err)
			}
			if err := f.Validate(answer); err != nil {
				return nil, err
			}
			value = answer
		}

		if value == "" && !wasSupplied {
			// Optional and unset: leave it out entirely.
			continue
		}
		resolved[f.Name] = value
	}

	if len(missing) > 0 {
		return nil, &MissingValueError{Fields: missing}
	}
	return resolved, nil
}

// Terminal is the real interactive provider. Prompts go to stderr so
// stdout stays clean for data output; secret fields are read with echo
// disabled.
type Terminal struct {
	in  *os.File
	out io.Writer
}

// NewTerminal returns a provider bound to stdin/stderr.
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr}
}

func (t *Terminal) Available() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) Ask(field resource.Field) (string, error) {
	label := field.Name
	if field.Type == resource.Choice && len(field.Choices) > 0 {
		label += " (" + strings.Join(field.Choices, "/") + ")"
	}
	fmt.Fprintf(t.out, "%s: ", label)

	if field.Secret {
		value, err := term.ReadPassword(int(t.in.Fd()))
		fmt.Fprintln(t.out)
		if err != nil {
			return "", err
		}
		return string(value), nil
	}

	reader := bufio.NewReader(t.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Scripted answers from a fixed map and records what was asked. It is
// the test double for Terminal.
type Scripted struct {
	Answers map[string]string
	Asked   []string
}

func (s *Scripted) Available() bool { return true }

func (s *Scripted) Ask(field resource.Field) (string, error) {
	s.Asked = append(s.Asked, field.Name)
	answer, ok := s.Answers[field.Name]
	if !ok {
		return "", fmt.Errorf("no scripted answer for %s", field.Name)
	}
	return answer, nil
}

// NonInteractive is a provider that can never ask, for forced
// batch-mode invocations (--no-input).
type NonInteractive struct{}

func (NonInteractive) Available() bool { return false }

func (NonInteractive) Ask(field resource.Field) (string, error) {
	return "", fmt.Errorf("non-interactive: cannot prompt for %s", field.Name)
}
