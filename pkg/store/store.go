// Package store persists harvested posts in SQLite. The table is keyed by
// the remote post ID; ingesting the same identity again overwrites the row,
// so re-fetching an already-stored page is harmless.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY,
	date TEXT,
	date_gmt TEXT,
	guid TEXT,
	modified TEXT,
	modified_gmt TEXT,
	slug TEXT,
	status TEXT,
	type TEXT,
	link TEXT,
	title TEXT,
	content TEXT,
	excerpt TEXT,
	author INTEGER,
	featured_media INTEGER,
	comment_status TEXT,
	ping_status TEXT,
	sticky INTEGER,
	template TEXT,
	format TEXT,
	meta TEXT,
	categories TEXT,
	tags TEXT,
	area TEXT,
	alerts TEXT,
	countries TEXT,
	class_list TEXT
)`

const upsertSQL = `
INSERT INTO posts (
	id, date, date_gmt, guid, modified, modified_gmt, slug, status, type, link,
	title, content, excerpt, author, featured_media, comment_status, ping_status,
	sticky, template, format, meta, categories, tags, area, alerts, countries, class_list
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	date=excluded.date,
	date_gmt=excluded.date_gmt,
	guid=excluded.guid,
	modified=excluded.modified,
	modified_gmt=excluded.modified_gmt,
	slug=excluded.slug,
	status=excluded.status,
	type=excluded.type,
	link=excluded.link,
	title=excluded.title,
	content=excluded.content,
	excerpt=excluded.excerpt,
	author=excluded.author,
	featured_media=excluded.featured_media,
	comment_status=excluded.comment_status,
	ping_status=excluded.ping_status,
	sticky=excluded.sticky,
	template=excluded.template,
	format=excluded.format,
	meta=excluded.meta,
	categories=excluded.categories,
	tags=excluded.tags,
	area=excluded.area,
	alerts=excluded.alerts,
	countries=excluded.countries,
	class_list=excluded.class_list`

const selectColumns = `id, date, date_gmt, guid, modified, modified_gmt, slug, status, type, link,
	title, content, excerpt, author, featured_media, comment_status, ping_status,
	sticky, template, format, meta, categories, tags, area, alerts, countries,
	COALESCE(class_list, '')`

// Store is the durable posts table.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens (creating if needed) the posts database at path.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.DebugWithFields("posts database opened", map[string]interface{}{
		"path": path,
	})
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open database", err)
	}
	// single writer; concurrent sessions against one source are not supported
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("ping database", err)
	}
	return db, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return storageErr("create posts table", err)
	}
	// additive migration for databases created before class_list existed
	if err := ensureColumn(s.db, "posts", "class_list", "TEXT"); err != nil {
		return err
	}
	return nil
}

// ensureColumn adds a nullable column to an existing table if it is missing.
func ensureColumn(db *sql.DB, table, column, typ string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return storageErr("inspect table", err)
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
			return storageErr("inspect table", err)
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("inspect table", err)
	}

	if !found {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
		if _, err := db.Exec(stmt); err != nil {
			return storageErr("add column", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or overwrites a single post.
func (s *Store) Upsert(ctx context.Context, p models.Post) error {
	_, err := s.db.ExecContext(ctx, upsertSQL, upsertArgs(p)...)
	if err != nil {
		return storageErr("upsert post", err)
	}
	return nil
}

// UpsertBatch writes all posts in one transaction. On any failure the whole
// batch rolls back; no partial page is ever visible.
func (s *Store) UpsertBatch(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin batch", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		_ = tx.Rollback()
		return storageErr("prepare batch", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		if _, err := stmt.ExecContext(ctx, upsertArgs(p)...); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("upsert post %d", p.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit batch", err)
	}

	s.logger.DebugWithFields("batch stored", map[string]interface{}{
		"posts": len(posts),
	})
	return nil
}

func upsertArgs(p models.Post) []interface{} {
	return []interface{}{
		p.ID, p.Date, p.DateGMT, p.GUID, p.Modified, p.ModifiedGMT, p.Slug,
		p.Status, p.Type, p.Link, p.Title, p.Content, p.Excerpt, p.Author,
		p.FeaturedMedia, p.CommentStatus, p.PingStatus, boolInt(p.Sticky),
		p.Template, p.Format, p.Meta, p.Categories, p.Tags, p.Area, p.Alerts,
		p.Countries, p.ClassList,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Count returns the number of stored posts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, storageErr("count posts", err)
	}
	return n, nil
}

// Exists reports whether a post with the given ID is stored.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check post", err)
	}
	return true, nil
}

// AllIDs returns all stored post IDs in ascending order.
func (s *Store) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM posts ORDER BY id")
	if err != nil {
		return nil, storageErr("list post ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan post id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// All returns every stored post ordered by ID; this is the complete,
// deduplicated record set handed to export sinks.
func (s *Store) All(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM posts ORDER BY id")
	if err != nil {
		return nil, storageErr("list posts", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var (
			p      models.Post
			sticky int
		)
		err := rows.Scan(
			&p.ID, &p.Date, &p.DateGMT, &p.GUID, &p.Modified, &p.ModifiedGMT,
			&p.Slug, &p.Status, &p.Type, &p.Link, &p.Title, &p.Content,
			&p.Excerpt, &p.Author, &p.FeaturedMedia, &p.CommentStatus,
			&p.PingStatus, &sticky, &p.Template, &p.Format, &p.Meta,
			&p.Categories, &p.Tags, &p.Area, &p.Alerts, &p.Countries,
			&p.ClassList,
		)
		if err != nil {
			return nil, storageErr("scan post", err)
		}
		p.Sticky = sticky == 1
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func storageErr(op string, err error) error {
	return &errs.Error{
		Type:    errs.ErrorTypeStorage,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}
