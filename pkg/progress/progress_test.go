package progress

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const source = "https://example.com/"

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metadata.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestReturnsNilForUnknownSource(t *testing.T) {
	s := testStore(t)

	sess, err := s.Latest(context.Background(), source)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestCheckpointCreatesAndAdvancesSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, source, 1, 100))

	sess, err := s.Latest(ctx, source)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.LastPage)
	assert.Equal(t, 2, sess.NextPage)
	assert.Equal(t, 100, sess.TotalPosts)
	assert.Equal(t, StatusInProgress, sess.Status)

	require.NoError(t, s.Checkpoint(ctx, source, 2, 200))

	sess, err = s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.LastPage)
	assert.Equal(t, 3, sess.NextPage)
	assert.Equal(t, 200, sess.TotalPosts)
}

func TestCheckpointInvariant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// next_page_to_fetch is always last_page_scraped+1 after any checkpoint
	for page := 1; page <= 5; page++ {
		require.NoError(t, s.Checkpoint(ctx, source, page, page*100))

		sess, err := s.Latest(ctx, source)
		require.NoError(t, err)
		assert.Equal(t, sess.LastPage+1, sess.NextPage)
	}
}

func TestCheckpointUpdatesLatestRowInPlace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, source, 1, 100))
	require.NoError(t, s.Checkpoint(ctx, source, 2, 200))

	first, err := s.Latest(ctx, source)
	require.NoError(t, err)
	require.NoError(t, s.Checkpoint(ctx, source, 3, 300))

	second, err := s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFinalizeComplete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, source, 4, 400))
	require.NoError(t, s.Finalize(ctx, source, "2024-03-01T12:00:00", 400, 4, "golang", StatusComplete))

	sess, err := s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, sess.Status)
	assert.Equal(t, "2024-03-01T12:00:00", sess.LatestModified)
	assert.Equal(t, 400, sess.TotalPosts)
	assert.Equal(t, 4, sess.LastPage)
	assert.Equal(t, 5, sess.NextPage)
	assert.Equal(t, "golang", sess.SearchQuery)
}

func TestFinalizeUpdateModeResetsPaging(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// update-mode runs don't track pages; lastPage 0 resets next page to 1
	require.NoError(t, s.Finalize(ctx, source, "2024-04-01T00:00:00", 50, 0, "", StatusComplete))

	sess, err := s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.LastPage)
	assert.Equal(t, 1, sess.NextPage)
}

func TestFinalizeInterrupted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Checkpoint(ctx, source, 2, 200))
	require.NoError(t, s.Finalize(ctx, source, "", 200, 2, "", StatusInterrupted))

	sess, err := s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, sess.Status)
	assert.Equal(t, "", sess.LatestModified)
	assert.Equal(t, 3, sess.NextPage)
}

func TestSessionsAreScopedBySource(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	other := "https://other.example.com/"
	require.NoError(t, s.Checkpoint(ctx, source, 5, 500))
	require.NoError(t, s.Checkpoint(ctx, other, 1, 10))

	sess, err := s.Latest(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 5, sess.LastPage)

	sess, err = s.Latest(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.LastPage)
}

func TestAccessors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.NextPage(ctx, source)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Finalize(ctx, source, "2024-01-01T00:00:00", 100, 3, "news", StatusComplete))

	page, ok, err := s.NextPage(ctx, source)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, page)

	watermark, ok, err := s.LatestModified(ctx, source)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00", watermark)

	filter, err := s.ActiveFilter(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, "news", filter)
}

func TestCheckpointTimesAreUTC(t *testing.T) {
	s := testStore(t)
	fixed := time.Date(2024, 6, 1, 15, 30, 0, 0, time.FixedZone("X", 3*3600))
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Checkpoint(context.Background(), source, 1, 10))

	sess, err := s.Latest(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:30:00Z", sess.LastScrapeTime)
}

func TestMigrationFromLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")

	// schema before next_page_to_fetch and search_query existed
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE scrape_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		last_scrape_time TEXT NOT NULL,
		latest_post_modified TEXT,
		total_posts_scraped INTEGER DEFAULT 0,
		last_page_scraped INTEGER DEFAULT 0,
		status TEXT DEFAULT 'in_progress'
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO scrape_sessions
		(source_url, last_scrape_time, total_posts_scraped, last_page_scraped, status)
		VALUES (?, '2024-01-01T00:00:00Z', 300, 3, 'complete')`, source)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.Latest(context.Background(), source)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 3, sess.LastPage)
	assert.Equal(t, 1, sess.NextPage)
	assert.Equal(t, "", sess.SearchQuery)
	assert.Equal(t, StatusComplete, sess.Status)
}
