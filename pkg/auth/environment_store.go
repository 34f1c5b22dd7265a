package auth

import (
	"os"
	"time"

	"tiktokgraph/pkg/config"
)

const (
	envClientKey    = config.EnvPrefix + "CLIENT_KEY"
	envClientSecret = config.EnvPrefix + "CLIENT_SECRET"
)

// EnvironmentStore is a read-only CredentialStore over
// TIKTOKGRAPH_CLIENT_KEY and TIKTOKGRAPH_CLIENT_SECRET
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credentials under name, or DefaultAccount
// when name is empty
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	key := os.Getenv(envClientKey)
	secret := os.Getenv(envClientSecret)
	if key == "" || secret == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultAccount
	}

	return &Account{
		Name:         name,
		ClientKey:    key,
		ClientSecret: secret,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(envClientKey) != "" && os.Getenv(envClientSecret) != ""
}
