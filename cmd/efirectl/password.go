package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// getPassword retrieves the controller password from EFIRE_PASSWORD or
// prompts for it.
func getPassword() (string, error) {
	return readSecret("EFIRE_PASSWORD", "Password: ")
}

// getNewPassword retrieves a replacement password from EFIRE_NEW_PASSWORD
// or prompts for it twice.
func getNewPassword() (string, error) {
	if pw := os.Getenv("EFIRE_NEW_PASSWORD"); pw != "" {
		return pw, nil
	}
	first, err := readSecret("", "New password: ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("", "Repeat new password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func readSecret(envVar, prompt string) (string, error) {
	if envVar != "" {
		if pw := os.Getenv(envVar); pw != "" {
			return pw, nil
		}
	}

	fmt.Fprint(os.Stderr, prompt)

	// Read without echo
	pw, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprintln(os.Stderr)
	return string(pw), nil
}
