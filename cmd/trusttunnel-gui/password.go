package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/shini4i/trusttunnel-gui/internal/keyring"
	"github.com/shini4i/trusttunnel-gui/internal/profile"
)

// promptFunc asks the user for a secret.
type promptFunc func(prompt string) (string, error)

// errNoPassword is returned when the password is neither in the credential
// file nor in the keyring and no terminal is available to ask for it.
var errNoPassword = errors.New("no password available")

// resolvePassword fills ep.Password from the credential file, the keyring
// or an interactive prompt, in that order. With save set, the password in
// use is stored in the keyring under account.
func resolvePassword(ep *profile.Endpoint, account string, store keyring.Store, prompt promptFunc, save bool) error {
	source := "credential file"
	if ep.Password == "" {
		password, err := store.Get(account)
		switch {
		case err == nil && password != "":
			ep.Password = password
			slog.Debug("Using password from keyring", "account", account)
			return nil
		case err != nil && !errors.Is(err, keyring.ErrKeyringCredentialNotFound):
			slog.Warn("Failed to read keyring", "account", account, "error", err)
		}

		if prompt == nil {
			return fmt.Errorf("%w for %s: run in a terminal or store it with --save-password", errNoPassword, account)
		}
		password, err = prompt(fmt.Sprintf("Password for %s: ", account))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if password == "" {
			return fmt.Errorf("%w for %s", errNoPassword, account)
		}
		ep.Password = password
		source = "prompt"
	}

	if save {
		if err := store.Save(account, ep.Password); err != nil {
			slog.Warn("Failed to save password to keyring", "account", account, "error", err)
		} else {
			slog.Info("Password saved to keyring", "account", account, "source", source)
		}
	}
	return nil
}

// terminalPrompt reads a password from the controlling terminal without
// echo. It returns nil when stdin is not a terminal.
func terminalPrompt() promptFunc {
	fd := int(os.Stdin.Fd()) // #nosec G115 -- file descriptors fit in int
	if !term.IsTerminal(fd) {
		return nil
	}
	return func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}
