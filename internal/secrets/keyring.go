// Package secrets reads credentials from the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "statejobs"

// ErrNoSecret is returned when the keychain has no usable entry.
var ErrNoSecret = errors.New("secret not found in keychain")

// LookupAPIKey returns the model-provider API key stored under account.
func LookupAPIKey(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	key, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", account, ErrNoSecret)
	}
	if err != nil {
		return "", fmt.Errorf("reading keychain: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s: %w", account, ErrNoSecret)
	}
	return strings.TrimSpace(key), nil
}

// StoreAPIKey saves key under account, replacing any previous value.
func StoreAPIKey(account, key string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, account, key)
}
