package main

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/term"
)

// Environment variables read before prompting
const (
	PasswordEnvVar    = "CRYPTIC_PASSWORD"
	NewPasswordEnvVar = "CRYPTIC_NEW_PASSWORD"
)

// prompter reads passwords from the environment or a terminal
type prompter struct {
	env  func(string) string
	read func(prompt string) ([]byte, error)
}

func newPrompter() *prompter {
	return &prompter{
		env:  os.Getenv,
		read: readPassword,
	}
}

// password returns the password from envVar, or prompts for it
func (p *prompter) password(envVar, prompt string) (string, error) {
	if envPass := p.env(envVar); envPass != "" {
		return envPass, nil
	}

	b, err := p.read(prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// confirmedPassword prompts twice and requires both entries to match. The
// environment variable, if set, is used without confirmation.
func (p *prompter) confirmedPassword(envVar, prompt, confirmPrompt string) (string, error) {
	if envPass := p.env(envVar); envPass != "" {
		return envPass, nil
	}

	first, err := p.read(prompt)
	if err != nil {
		return "", err
	}
	second, err := p.read(confirmPrompt)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr) // Print newline after password input

	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		return term.ReadPassword(fd)
	}

	// STDIN is not a terminal (piped), try to read from /dev/tty
	tty, err := os.Open("/dev/tty")
	if err != nil {
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("password must be set via %s when STDIN is not a terminal", PasswordEnvVar)
		}
		return nil, fmt.Errorf("cannot read password: STDIN is not a terminal and /dev/tty is not available. Set %s", PasswordEnvVar)
	}
	defer tty.Close()

	return term.ReadPassword(int(tty.Fd()))
}
