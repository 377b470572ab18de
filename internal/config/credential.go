package config

import (
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/Tiliavir/ticket-timer/internal/model"
)

// Credential kinds accepted in a section's credential key.
const (
	CredentialConfig  = "config"
	CredentialKeyring = "keyring"
)

// KeyringService is the OS keychain service name secrets are stored under.
const KeyringService = "ticket-timer"

// CredentialSource yields the secret a service authenticates with.
type CredentialSource interface {
	Secret() (string, error)
}

// InlineCredential is a secret written directly in the config file.
type InlineCredential string

func (c InlineCredential) Secret() (string, error) {
	return string(c), nil
}

// KeyringCredential looks the secret up in the OS keychain.
type KeyringCredential struct {
	Service string
	User    string
}

func (c KeyringCredential) Secret() (string, error) {
	s, err := keyring.Get(c.Service, c.User)
	if err != nil {
		return "", fmt.Errorf("keychain entry %s/%s: %w", c.Service, c.User, err)
	}
	return s, nil
}

// NewCredentialSource picks the credential variant for a config section.
func NewCredentialSource(section, kind, inline string) (CredentialSource, error) {
	switch kind {
	case "", CredentialConfig:
		return InlineCredential(inline), nil
	case CredentialKeyring:
		return KeyringCredential{Service: KeyringService, User: section}, nil
	}
	return nil, fmt.Errorf("%w: %s.credential: unknown kind %q (want %q or %q)",
		model.ErrConfigInvalid, section, kind, CredentialConfig, CredentialKeyring)
}

// StoreSecret writes a secret for section into the OS keychain.
func StoreSecret(section, secret string) error {
	return keyring.Set(KeyringService, section, secret)
}

func resolveSecret(section, kind, inline string) (string, error) {
	src, err := NewCredentialSource(section, kind, inline)
	if err != nil {
		return "", err
	}
	secret, err := src.Secret()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", model.ErrConfigInvalid, section, err)
	}
	if secret == "" {
		return "", fmt.Errorf("%w: %s: empty credential", model.ErrConfigInvalid, section)
	}
	return secret, nil
}
