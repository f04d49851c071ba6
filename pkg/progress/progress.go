// Package progress tracks per-source scrape checkpoints in SQLite, separate
// from the harvested data. The most recent row for a source is its
// authoritative session state; rows are never deleted by normal operation.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
)

// Status is the lifecycle state of a scrape session.
type Status string

const (
	StatusInProgress  Status = "in_progress"
	StatusInterrupted Status = "interrupted"
	StatusComplete    Status = "complete"
)

// Session is one source's checkpoint state.
type Session struct {
	ID             int64
	SourceURL      string
	LastScrapeTime string
	LatestModified string
	TotalPosts     int
	LastPage       int
	NextPage       int
	SearchQuery    string
	Status         Status
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS scrape_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url TEXT NOT NULL,
	last_scrape_time TEXT NOT NULL,
	latest_post_modified TEXT,
	total_posts_scraped INTEGER DEFAULT 0,
	last_page_scraped INTEGER DEFAULT 0,
	next_page_to_fetch INTEGER DEFAULT 1,
	search_query TEXT,
	status TEXT DEFAULT 'in_progress'
)`

// Store is the durable checkpoint table.
type Store struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the progress database at path.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open progress database", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("ping progress database", err)
	}

	s := &Store{db: db, logger: log, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return storageErr("create sessions table", err)
	}
	// columns added after the first release; existing rows stay valid
	if err := s.ensureColumn("next_page_to_fetch", "INTEGER DEFAULT 1"); err != nil {
		return err
	}
	if err := s.ensureColumn("search_query", "TEXT"); err != nil {
		return err
	}
	return nil
}

func (s *Store) ensureColumn(column, typ string) error {
	rows, err := s.db.Query("PRAGMA table_info(scrape_sessions)")
	if err != nil {
		return storageErr("inspect sessions table", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var (
			cid        int
			name, ctyp string
			notnull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctyp, &notnull, &dflt, &pk); err != nil {
			return storageErr("inspect sessions table", err)
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("inspect sessions table", err)
	}

	if !found {
		s.logger.InfoWithFields("migrating sessions table", map[string]interface{}{
			"column": column,
		})
		stmt := fmt.Sprintf("ALTER TABLE scrape_sessions ADD COLUMN %s %s", column, typ)
		if _, err := s.db.Exec(stmt); err != nil {
			return storageErr("add sessions column", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Latest returns the authoritative session for a source, or nil if the
// source has never been scraped.
func (s *Store) Latest(ctx context.Context, sourceURL string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_url, last_scrape_time,
			COALESCE(latest_post_modified, ''),
			total_posts_scraped, last_page_scraped, next_page_to_fetch,
			COALESCE(search_query, ''), status
		FROM scrape_sessions
		WHERE source_url = ?
		ORDER BY id DESC
		LIMIT 1`, sourceURL)

	var sess Session
	var status string
	err := row.Scan(&sess.ID, &sess.SourceURL, &sess.LastScrapeTime,
		&sess.LatestModified, &sess.TotalPosts, &sess.LastPage,
		&sess.NextPage, &sess.SearchQuery, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load session", err)
	}
	sess.Status = Status(status)
	return &sess, nil
}

// NextPage returns the page a resumed scrape should start from. ok is false
// when the source has no session history.
func (s *Store) NextPage(ctx context.Context, sourceURL string) (page int, ok bool, err error) {
	sess, err := s.Latest(ctx, sourceURL)
	if err != nil || sess == nil {
		return 0, false, err
	}
	return sess.NextPage, true, nil
}

// LatestModified returns the source's modification watermark. ok is false
// when no watermark has been recorded.
func (s *Store) LatestModified(ctx context.Context, sourceURL string) (watermark string, ok bool, err error) {
	sess, err := s.Latest(ctx, sourceURL)
	if err != nil || sess == nil {
		return "", false, err
	}
	return sess.LatestModified, sess.LatestModified != "", nil
}

// ActiveFilter returns the search phrase bound to the source's session.
func (s *Store) ActiveFilter(ctx context.Context, sourceURL string) (string, error) {
	sess, err := s.Latest(ctx, sourceURL)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.SearchQuery, nil
}

// Checkpoint records that a page was fetched and its records durably stored.
// The whole row update commits atomically: next_page_to_fetch is always
// last_page_scraped+1 afterwards, and the session stays in_progress.
func (s *Store) Checkpoint(ctx context.Context, sourceURL string, page, totalPosts int) error {
	now := s.now().UTC().Format(time.RFC3339)
	nextPage := page + 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin checkpoint", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM scrape_sessions WHERE source_url = ? ORDER BY id DESC LIMIT 1",
		sourceURL).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scrape_sessions (
				source_url, last_scrape_time, total_posts_scraped,
				last_page_scraped, next_page_to_fetch, status
			) VALUES (?, ?, ?, ?, ?, ?)`,
			sourceURL, now, totalPosts, page, nextPage, string(StatusInProgress))
	case err != nil:
		_ = tx.Rollback()
		return storageErr("find session", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE scrape_sessions
			SET last_scrape_time = ?,
				total_posts_scraped = ?,
				last_page_scraped = ?,
				next_page_to_fetch = ?,
				status = ?
			WHERE id = ?`,
			now, totalPosts, page, nextPage, string(StatusInProgress), id)
	}
	if err != nil {
		_ = tx.Rollback()
		return storageErr("write checkpoint", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit checkpoint", err)
	}

	s.logger.DebugWithFields("checkpoint written", map[string]interface{}{
		"source":    sourceURL,
		"page":      page,
		"next_page": nextPage,
		"total":     totalPosts,
	})
	return nil
}

// Finalize writes the terminal state of a session. lastPage 0 means the run
// did not track pages (update mode); the next page to fetch stays 1.
func (s *Store) Finalize(ctx context.Context, sourceURL, latestModified string, totalPosts, lastPage int, searchQuery string, status Status) error {
	now := s.now().UTC().Format(time.RFC3339)
	nextPage := 1
	if lastPage > 0 {
		nextPage = lastPage + 1
	}

	var modified interface{}
	if latestModified != "" {
		modified = latestModified
	}
	var search interface{}
	if searchQuery != "" {
		search = searchQuery
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin finalize", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM scrape_sessions WHERE source_url = ? ORDER BY id DESC LIMIT 1",
		sourceURL).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scrape_sessions (
				source_url, last_scrape_time, latest_post_modified,
				total_posts_scraped, last_page_scraped, next_page_to_fetch,
				search_query, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sourceURL, now, modified, totalPosts, lastPage, nextPage, search, string(status))
	case err != nil:
		_ = tx.Rollback()
		return storageErr("find session", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE scrape_sessions
			SET last_scrape_time = ?,
				latest_post_modified = ?,
				total_posts_scraped = ?,
				last_page_scraped = ?,
				next_page_to_fetch = ?,
				search_query = ?,
				status = ?
			WHERE id = ?`,
			now, modified, totalPosts, lastPage, nextPage, search, string(status), id)
	}
	if err != nil {
		_ = tx.Rollback()
		return storageErr("write finalize", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit finalize", err)
	}

	s.logger.InfoWithFields("session finalized", map[string]interface{}{
		"source": sourceURL,
		"status": string(status),
		"total":  totalPosts,
	})
	return nil
}

func storageErr(op string, err error) error {
	return &errs.Error{
		Type:    errs.ErrorTypeStorage,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}
