package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	// Failure switches let tests exercise fallback behavior.
	FailStore    bool
	FailRetrieve bool
	FailDelete   bool
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]*Account)}
}

// Store saves an account in memory.
func (m *MockStore) Store(account *Account) error {
	if m.FailStore {
		return ErrStoreUnavailable
	}
	if account == nil || account.Site == "" || account.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.Key()] = &copied
	return nil
}

// Retrieve gets an account from memory.
func (m *MockStore) Retrieve(site, username string) (*Account, error) {
	if m.FailRetrieve {
		return nil, ErrStoreUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[site+"|"+username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	copied := *account
	return &copied, nil
}

// List returns all stored accounts.
func (m *MockStore) List() ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		copied := *account
		accounts = append(accounts, &copied)
	}
	return accounts, nil
}

// Delete removes an account from memory.
func (m *MockStore) Delete(site, username string) error {
	if m.FailDelete {
		return ErrStoreUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := site + "|" + username
	if _, ok := m.accounts[key]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, key)
	return nil
}

// Exists checks whether an account is stored.
func (m *MockStore) Exists(site, username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[site+"|"+username]
	return ok
}
