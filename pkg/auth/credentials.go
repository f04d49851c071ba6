// Package auth stores WordPress application-password credentials. Scraping
// published posts needs no authentication; credentials unlock drafts and
// private posts for accounts that have them.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account holds one site's application-password credentials. AppPassword is
// the 24-character password WordPress issues under Users > Application
// Passwords, not the account's login password.
type Account struct {
	Site         string    `json:"site"`
	Username     string    `json:"username"`
	AppPassword  string    `json:"app_password"`
	LastModified time.Time `json:"last_modified"`
}

// Key returns the lookup key binding an account to its site. Credentials are
// site-scoped because the same username may exist on many sites.
func (a *Account) Key() string {
	return a.Site + "|" + a.Username
}

// CredentialStore is a single credential backend.
type CredentialStore interface {
	// Store saves credentials for an account.
	Store(account *Account) error

	// Retrieve gets credentials for a site and username.
	Retrieve(site, username string) (*Account, error)

	// List returns all stored accounts.
	List() ([]*Account, error)

	// Delete removes credentials for a site and username.
	Delete(site, username string) error

	// Exists checks whether credentials exist for a site and username.
	Exists(site, username string) bool
}

// Manager layers credential backends: system keychain when available, then
// an encrypted file, then environment variables as a read-only last resort.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a Manager with the available backends.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first backend that accepts them.
func (m *Manager) Store(account *Account) error {
	if account.Site == "" {
		return errors.New("site URL is required")
	}
	if account.Username == "" {
		return errors.New("username is required")
	}
	if account.AppPassword == "" {
		return errors.New("application password is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first backend that has them.
func (m *Manager) Retrieve(site, username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(site, username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for %s on %s", username, site)
}

// List returns all stored accounts across backends, most recently modified
// entry winning per site/username pair.
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Key()]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Key()] = account
			}
		}
	}

	var result []*Account
	for _, account := range accountMap {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes credentials from all backends that hold them.
func (m *Manager) Delete(site, username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(site, username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for %s on %s", username, site)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "wpharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "wpharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "wpharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "wpharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy of the account with the password masked.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Site:         account.Site,
		Username:     account.Username,
		AppPassword:  maskString(account.AppPassword),
		LastModified: account.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
