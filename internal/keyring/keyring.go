// Package keyring stores credential passwords in the system keyring so
// credential files can leave the password field empty.
package keyring

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	zkeyring "github.com/zalando/go-keyring"
)

// ServiceName is the identifier used for storing passwords in the system keyring.
const ServiceName = "trusttunnel-gui"

// maxAccountLength keeps account names within what Secret Service and wincred accept.
const maxAccountLength = 255

var (
	// ErrKeyringCredentialNotFound is returned when a password does not exist in the keyring.
	ErrKeyringCredentialNotFound = errors.New("credential not found")
	// ErrKeyringInvalidAccount is returned for empty or malformed account names.
	ErrKeyringInvalidAccount = errors.New("invalid keyring account name")
)

// Store defines the interface for password storage operations.
// The account is a credential display name such as user@host.
type Store interface {
	Save(account, password string) error
	Get(account string) (string, error)
	Delete(account string) error
}

// SystemKeyring implements Store using the system keyring.
type SystemKeyring struct{}

// NewSystemKeyring creates a new SystemKeyring instance.
func NewSystemKeyring() *SystemKeyring {
	return &SystemKeyring{}
}

// Save stores a password for the given account.
func (s *SystemKeyring) Save(account, password string) error {
	if err := validateAccount(account); err != nil {
		return err
	}
	if err := zkeyring.Set(ServiceName, account, password); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Get retrieves the password for the given account.
// Returns ErrKeyringCredentialNotFound if nothing is stored.
func (s *SystemKeyring) Get(account string) (string, error) {
	if err := validateAccount(account); err != nil {
		return "", err
	}
	password, err := zkeyring.Get(ServiceName, account)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return "", ErrKeyringCredentialNotFound
		}
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}
	return password, nil
}

// Delete removes the password for the given account.
// Deleting a missing entry is not an error.
func (s *SystemKeyring) Delete(account string) error {
	if err := validateAccount(account); err != nil {
		return err
	}
	if err := zkeyring.Delete(ServiceName, account); err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

func validateAccount(account string) error {
	if strings.TrimSpace(account) == "" || len(account) > maxAccountLength {
		return ErrKeyringInvalidAccount
	}
	for _, r := range account {
		if unicode.IsControl(r) {
			return ErrKeyringInvalidAccount
		}
	}
	return nil
}
