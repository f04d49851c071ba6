package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSite = "https://example.com/"
	testUser = "editor"
	testPass = "abcd efgh ijkl mnop qrst uvwx"
)

func testAccount() *Account {
	return &Account{
		Site:        testSite,
		Username:    testUser,
		AppPassword: testPass,
	}
}

func managerWith(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	m := managerWith(NewMockStore())

	require.NoError(t, m.Store(testAccount()))

	account, err := m.Retrieve(testSite, testUser)
	require.NoError(t, err)
	assert.Equal(t, testPass, account.AppPassword)
	assert.False(t, account.LastModified.IsZero())
}

func TestManagerStoreValidation(t *testing.T) {
	m := managerWith(NewMockStore())

	assert.Error(t, m.Store(&Account{Username: testUser, AppPassword: testPass}))
	assert.Error(t, m.Store(&Account{Site: testSite, AppPassword: testPass}))
	assert.Error(t, m.Store(&Account{Site: testSite, Username: testUser}))
}

func TestManagerFallsBackWhenFirstStoreFails(t *testing.T) {
	broken := NewMockStore()
	broken.FailStore = true
	broken.FailRetrieve = true
	working := NewMockStore()

	m := managerWith(broken, working)

	require.NoError(t, m.Store(testAccount()))
	assert.True(t, working.Exists(testSite, testUser))

	account, err := m.Retrieve(testSite, testUser)
	require.NoError(t, err)
	assert.Equal(t, testUser, account.Username)
}

func TestManagerRetrieveNotFound(t *testing.T) {
	m := managerWith(NewMockStore())

	_, err := m.Retrieve(testSite, "ghost")
	assert.Error(t, err)
}

func TestManagerCredentialsAreSiteScoped(t *testing.T) {
	m := managerWith(NewMockStore())

	require.NoError(t, m.Store(testAccount()))

	_, err := m.Retrieve("https://other.example.com/", testUser)
	assert.Error(t, err)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()

	stale := testAccount()
	stale.AppPassword = "old password old password"
	stale.LastModified = time.Now().Add(-time.Hour)
	require.NoError(t, older.Store(stale))

	fresh := testAccount()
	fresh.LastModified = time.Now()
	require.NoError(t, newer.Store(fresh))

	m := managerWith(older, newer)

	accounts, err := m.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, testPass, accounts[0].AppPassword)
}

func TestManagerDelete(t *testing.T) {
	store := NewMockStore()
	m := managerWith(store)

	require.NoError(t, m.Store(testAccount()))
	require.NoError(t, m.Delete(testSite, testUser))
	assert.False(t, store.Exists(testSite, testUser))

	assert.Error(t, m.Delete(testSite, testUser))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("WPHARVEST_PASSPHRASE", "test passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(testAccount()))

	account, err := store.Retrieve(testSite, testUser)
	require.NoError(t, err)
	assert.Equal(t, testPass, account.AppPassword)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, store.Delete(testSite, testUser))
	_, err = store.Retrieve(testSite, testUser)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("WPHARVEST_PASSPHRASE", "first passphrase")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(testAccount()))

	t.Setenv("WPHARVEST_PASSPHRASE", "second passphrase")
	store2, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = store2.Retrieve(testSite, testUser)
	assert.Error(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("WPHARVEST_USERNAME", testUser)
	t.Setenv("WPHARVEST_APP_PASSWORD", testPass)

	store := NewEnvironmentStore()

	account, err := store.Retrieve(testSite, testUser)
	require.NoError(t, err)
	assert.Equal(t, testPass, account.AppPassword)

	// store and delete are read-only
	assert.ErrorIs(t, store.Store(testAccount()), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(testSite, testUser), ErrStoreUnavailable)
}

func TestEnvironmentStoreMissingPassword(t *testing.T) {
	t.Setenv("WPHARVEST_APP_PASSWORD", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve(testSite, testUser)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestSanitizeAccount(t *testing.T) {
	masked := SanitizeAccount(testAccount())
	assert.Equal(t, testUser, masked.Username)
	assert.NotEqual(t, testPass, masked.AppPassword)
	assert.Equal(t, "abcd...uvwx", masked.AppPassword)

	short := SanitizeAccount(&Account{AppPassword: "tiny"})
	assert.Equal(t, "********", short.AppPassword)

	assert.Nil(t, SanitizeAccount(nil))
}
