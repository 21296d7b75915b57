package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/term"
)

const (
	PassphraseEnvVar = "PHONEX_PASSPHRASE"

	// minPassphrase is the length below which a warning is printed.
	minPassphrase = 6
)

// getPassphrase resolves the password from the flag, then the environment,
// then the terminal. confirm asks twice when prompting.
func getPassphrase(flag string, confirm bool) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if envPass := os.Getenv(PassphraseEnvVar); envPass != "" {
		return envPass, nil
	}

	passphrase, err := readPassword("Passphrase: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := readPassword("Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if !bytes.Equal(passphrase, again) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	if len(passphrase) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(passphrase), nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// STDIN is piped (payload from stdin), fall back to the controlling terminal
		tty, err := os.Open("/dev/tty")
		if err != nil {
			if runtime.GOOS == "windows" {
				return nil, fmt.Errorf("passphrase must be set via -p or %s when STDIN is piped", PassphraseEnvVar)
			}
			return nil, fmt.Errorf("cannot read passphrase: STDIN is piped and /dev/tty is not available. Set %s", PassphraseEnvVar)
		}
		defer tty.Close()
		fd = int(tty.Fd())
	}

	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return passphrase, nil
}
