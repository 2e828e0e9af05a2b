package useradmin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// readLine reads one line from reader with the trailing newline trimmed. A
// final line without newline is returned as is.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// getPassword prompts on w and reads a password. On a terminal the input is
// not echoed; otherwise it is read as a plain line so the CLI can be scripted.
func (a *App) getPassword(prompt string) (string, error) {
	if a.stdinFd >= 0 && isTerminal(a.stdinFd) {
		if _, err := fmt.Fprint(a.out, prompt); err != nil {
			return "", err
		}
		pw, err := readPassword(a.stdinFd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return readLine(a.in)
}
