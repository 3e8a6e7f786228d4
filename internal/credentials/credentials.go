// Package credentials resolves the Spider API key and persists it in the OS
// secret store.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/JakeFAU/spider-client/pkg/spider"
)

// Default secret store entry.
const (
	DefaultService = "spider_client"
	DefaultUser    = "default"
)

// Store reads and writes a single secret.
type Store interface {
	Get() (string, error)
	Set(secret string) error
}

// KeyringStore keeps the key in the OS keychain.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore returns a store for the given entry, falling back to the
// default service and account names.
func NewKeyringStore(service, user string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	if user == "" {
		user = DefaultUser
	}
	return &KeyringStore{Service: service, User: user}
}

// Get returns the stored key. A missing entry yields an empty string and no
// error.
func (s *KeyringStore) Get() (string, error) {
	secret, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keyring %s/%s: %w", s.Service, s.User, err)
	}
	return secret, nil
}

// Set stores the key, replacing any previous value.
func (s *KeyringStore) Set(secret string) error {
	if secret == "" {
		return errors.New("refusing to store an empty API key")
	}
	if err := keyring.Set(s.Service, s.User, secret); err != nil {
		return fmt.Errorf("write keyring %s/%s: %w", s.Service, s.User, err)
	}
	return nil
}

// Resolve picks the API key: explicit value, then SPIDER_API_KEY, then the
// store. It wraps spider.ErrNoAPIKey when all three are empty. A store that
// cannot be read is treated as empty.
func Resolve(explicit string, store Store) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(spider.EnvAPIKey); env != "" {
		return env, nil
	}
	if store != nil {
		secret, err := store.Get()
		if err == nil && secret != "" {
			return secret, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w (secret store unavailable: %v)", spider.ErrNoAPIKey, err)
		}
	}
	return "", fmt.Errorf("%w: pass --api-key, set %s or run `spider auth`", spider.ErrNoAPIKey, spider.EnvAPIKey)
}
