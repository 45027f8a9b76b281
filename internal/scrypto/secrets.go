package scrypto

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// SecretProvider supplies the password used to seal and open blobs. An
// empty password is valid key material; ErrNoSecret means the source itself
// is unavailable (unset variable, no terminal).
type SecretProvider interface {
	Secret() ([]byte, error)
}

// ErrNoSecret is returned when a provider has nothing to offer
var ErrNoSecret = errors.New("no password available")

// StaticSecret is an in-memory password, possibly empty
type StaticSecret []byte

// Secret returns a copy of the password
func (s StaticSecret) Secret() ([]byte, error) {
	return append([]byte{}, s...), nil
}

// EnvSecret reads the password from the named environment variable
type EnvSecret string

// Secret looks the variable up on every call
func (e EnvSecret) Secret() ([]byte, error) {
	value, ok := os.LookupEnv(string(e))
	if !ok || value == "" {
		return nil, fmt.Errorf("%w: $%s is not set", ErrNoSecret, string(e))
	}
	return []byte(value), nil
}

// TerminalSecret prompts for password with hidden input. The answer is
// cached after the first successful prompt.
type TerminalSecret struct {
	Prompt    string
	Confirm   bool // Ask twice and require a match
	MinLength int

	once     sync.Once
	password []byte
	err      error
}

// Secret prompts on first use
func (ts *TerminalSecret) Secret() ([]byte, error) {
	ts.once.Do(func() {
		ts.password, ts.err = ts.read()
	})
	if ts.err != nil {
		return nil, ts.err
	}
	return bytes.Clone(ts.password), nil
}

func (ts *TerminalSecret) read() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", ErrNoSecret)
	}

	pass, err := readHidden(fd, ts.Prompt)
	if err != nil {
		return nil, err
	}

	if len(pass) < ts.MinLength {
		return nil, fmt.Errorf("password must be at least %d characters", ts.MinLength)
	}

	if ts.Confirm {
		confirm, err := readHidden(fd, "🔑 Confirm password: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pass, confirm) {
			return nil, errors.New("passwords do not match")
		}
	}

	return pass, nil
}

func readHidden(fd int, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, fmt.Errorf("password read failed: %w", err)
	}
	return password, nil
}
