package scraper

import (
	"context"

	"wpharvest/pkg/models"
	"wpharvest/pkg/progress"
	"wpharvest/pkg/wordpress"
)

// PageFetcher fetches one page of raw posts from the remote collection.
// Implementations retry transient failures internally; an error returned
// here is fatal for the session unless it is wordpress.ErrEndOfData.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int, q wordpress.Query) ([]wordpress.RawPost, error)
	TotalPosts(ctx context.Context) (int, error)
}

// EntityStore persists normalized posts idempotently by identity.
type EntityStore interface {
	UpsertBatch(ctx context.Context, posts []models.Post) error
	Count(ctx context.Context) (int, error)
}

// ProgressStore persists per-source checkpoint state.
type ProgressStore interface {
	Latest(ctx context.Context, sourceURL string) (*progress.Session, error)
	Checkpoint(ctx context.Context, sourceURL string, page, totalPosts int) error
	Finalize(ctx context.Context, sourceURL, latestModified string, totalPosts, lastPage int, searchQuery string, status progress.Status) error
}
