package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from environment variables. It is
// read-only and mainly serves CI jobs where a keychain is unavailable.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from WPHARVEST_USERNAME / WPHARVEST_APP_PASSWORD.
// The environment holds at most one account, used for whatever site and
// username are asked for.
func (e *EnvironmentStore) Retrieve(site, username string) (*Account, error) {
	envUser := os.Getenv("WPHARVEST_USERNAME")
	appPassword := os.Getenv("WPHARVEST_APP_PASSWORD")

	if appPassword == "" {
		return nil, ErrCredentialsNotFound
	}
	if username == "" {
		username = envUser
	}
	if envUser != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Site:         site,
		Username:     username,
		AppPassword:  appPassword,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if one is configured.
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve(os.Getenv("WPHARVEST_URL"), "")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(site, username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist.
func (e *EnvironmentStore) Exists(site, username string) bool {
	return os.Getenv("WPHARVEST_APP_PASSWORD") != ""
}
