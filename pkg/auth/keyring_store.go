package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "wpharvest"
	keyringPrefix  = "wordpress_"
)

// KeyringStore keeps credentials in the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store, probing the keychain first
// since headless hosts often have none.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain.
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Site == "" || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	key := keyringPrefix + account.Key()
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets credentials from the system keychain.
func (k *KeyringStore) Retrieve(site, username string) (*Account, error) {
	if site == "" || username == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + site + "|" + username
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns no accounts; the keyring API cannot enumerate keys portably.
func (k *KeyringStore) List() ([]*Account, error) {
	return []*Account{}, nil
}

// Delete removes credentials from the system keychain.
func (k *KeyringStore) Delete(site, username string) error {
	if site == "" || username == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + site + "|" + username
	if err := keyring.Delete(keyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if credentials exist in the keychain.
func (k *KeyringStore) Exists(site, username string) bool {
	if site == "" || username == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+site+"|"+username)
	return err == nil
}
