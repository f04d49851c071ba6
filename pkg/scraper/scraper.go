// Package scraper drives the ingestion session: it reconciles stored
// progress with the operator's requested mode, walks the page sequence, and
// commits each page to storage before checkpointing it.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"wpharvest/pkg/config"
	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/normalize"
	"wpharvest/pkg/progress"
	"wpharvest/pkg/ratelimit"
	"wpharvest/pkg/wordpress"
)

// Mode is the session's ingestion strategy.
type Mode string

const (
	// ModeFull walks every page from the configured start page.
	ModeFull Mode = "full"
	// ModeResume continues an earlier session from its checkpoint.
	ModeResume Mode = "resume"
	// ModeUpdate fetches only posts modified after the stored watermark.
	ModeUpdate Mode = "update"
)

// Result summarizes a finished (or aborted) session.
type Result struct {
	Mode           Mode
	StartPage      int
	LastPage       int
	PagesFetched   int
	RecordsFetched int
	TotalRecords   int
	LatestModified string
	Status         progress.Status
}

// Scraper orchestrates one ingestion session. Fetch, normalize, store and
// checkpoint run strictly sequentially per page; next_page_to_fetch in the
// progress store therefore always covers exactly the pages whose records are
// durable, which is what makes a crash at any point resumable.
type Scraper struct {
	fetcher  PageFetcher
	entities EntityStore
	progress ProgressStore
	pacer    ratelimit.Limiter
	config   *config.Config
	logger   logger.Logger
}

// New creates a Scraper from its collaborators.
func New(cfg *config.Config, fetcher PageFetcher, entities EntityStore, progressStore ProgressStore, pacer ratelimit.Limiter, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if pacer == nil {
		pacer = ratelimit.NewInterval(cfg.Scrape.Delay)
	}
	return &Scraper{
		fetcher:  fetcher,
		entities: entities,
		progress: progressStore,
		pacer:    pacer,
		config:   cfg,
		logger:   log,
	}
}

// plan is the resolved session mode plus the prior state it was derived
// from. It is computed before any network or storage mutation happens.
type plan struct {
	mode          Mode
	startPage     int
	baseTotal     int
	baseWatermark string
	modifiedAfter string
}

// Run executes the session. The returned Result is valid even when err is
// non-nil, describing how far the session got.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	source := s.config.SourceURL()
	search := s.config.Site.Search

	p, err := s.choosePlan(ctx, source, search)
	if err != nil {
		return &Result{}, err
	}

	s.logger.InfoWithFields("session starting", map[string]interface{}{
		"source":     source,
		"mode":       string(p.mode),
		"start_page": p.startPage,
		"search":     search,
	})

	if p.mode == ModeUpdate {
		return s.runUpdate(ctx, source, search, p)
	}
	return s.runPaged(ctx, source, search, p)
}

// choosePlan resolves the session mode. Resume takes precedence over update;
// either falls back to a full scrape when no usable prior session exists. A
// filter mismatch aborts before anything is mutated.
func (s *Scraper) choosePlan(ctx context.Context, source, search string) (*plan, error) {
	prior, err := s.progress.Latest(ctx, source)
	if err != nil {
		return nil, err
	}

	full := &plan{mode: ModeFull, startPage: s.config.Scrape.StartPage}

	if s.config.Scrape.Resume {
		if prior == nil {
			s.logger.WarnWithFields("no previous session found, starting full scrape", map[string]interface{}{
				"source": source,
			})
			return full, nil
		}
		if err := checkFilter(prior.SearchQuery, search); err != nil {
			return nil, err
		}
		s.logger.InfoWithFields("resuming session", map[string]interface{}{
			"next_page": prior.NextPage,
			"last_page": prior.LastPage,
		})
		return &plan{
			mode:          ModeResume,
			startPage:     prior.NextPage,
			baseTotal:     prior.TotalPosts,
			baseWatermark: prior.LatestModified,
		}, nil
	}

	if s.config.Scrape.Update {
		if prior == nil {
			s.logger.Warn("no previous session found, starting full scrape")
			return full, nil
		}
		if err := checkFilter(prior.SearchQuery, search); err != nil {
			return nil, err
		}
		// an interrupted session's watermark only covers the pages it
		// committed; cutting over from it would skip everything past the
		// stop point until those posts happen to be modified again
		if prior.Status != progress.StatusComplete || prior.LatestModified == "" {
			s.logger.WarnWithFields("no completed session to update from, starting full scrape", map[string]interface{}{
				"status": string(prior.Status),
			})
			return full, nil
		}
		s.logger.InfoWithFields("updating since watermark", map[string]interface{}{
			"modified_after": prior.LatestModified,
		})
		return &plan{
			mode:          ModeUpdate,
			startPage:     1,
			baseTotal:     prior.TotalPosts,
			baseWatermark: prior.LatestModified,
			modifiedAfter: prior.LatestModified,
		}, nil
	}

	return full, nil
}

// checkFilter enforces that a session lineage is never mixed across search
// filters. The mismatch is an operator mistake, surfaced before any state
// changes.
func checkFilter(stored, requested string) error {
	switch {
	case stored == requested:
		return nil
	case stored != "" && requested == "":
		return errs.Newf(errs.ErrorTypeConfig,
			"stored session used search %q but none was requested; pass the original search phrase", stored)
	case stored == "" && requested != "":
		return errs.Newf(errs.ErrorTypeConfig,
			"stored session had no search filter but %q was requested; filtered and unfiltered data cannot be mixed", requested)
	default:
		return errs.Newf(errs.ErrorTypeConfig,
			"search filter mismatch: stored %q, requested %q", stored, requested)
	}
}

// runPaged is the checkpointed paging loop shared by full and resume modes.
func (s *Scraper) runPaged(ctx context.Context, source, search string, p *plan) (*Result, error) {
	res := &Result{
		Mode:           p.mode,
		StartPage:      p.startPage,
		LastPage:       p.startPage - 1,
		TotalRecords:   p.baseTotal,
		LatestModified: p.baseWatermark,
		Status:         progress.StatusInProgress,
	}

	if p.mode == ModeFull {
		if total, err := s.fetcher.TotalPosts(ctx); err == nil && total > 0 {
			s.logger.InfoWithFields("remote collection size", map[string]interface{}{
				"total_posts": total,
			})
		}
	}

	q := wordpress.Query{Search: search}

	for page := p.startPage; ; page++ {
		if s.config.Scrape.MaxPages > 0 && res.PagesFetched >= s.config.Scrape.MaxPages {
			s.logger.InfoWithFields("reached page ceiling", map[string]interface{}{
				"max_pages": s.config.Scrape.MaxPages,
			})
			break
		}

		// cooperative cancellation point; an operator interrupt is a clean
		// stop, not a crash
		if err := ctx.Err(); err != nil {
			return s.finalizeInterrupted(source, search, p, res, err)
		}

		if err := s.pacer.Wait(ctx); err != nil {
			return s.finalizeInterrupted(source, search, p, res, err)
		}

		raw, err := s.fetcher.FetchPage(ctx, page, q)
		if errors.Is(err, wordpress.ErrEndOfData) {
			s.logger.InfoWithFields("no more posts", map[string]interface{}{
				"page": page,
			})
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.finalizeInterrupted(source, search, p, res, err)
			}
			// prior checkpoints stay valid; the session remains resumable
			s.logger.ErrorWithFields("session aborted", map[string]interface{}{
				"page":  page,
				"error": err.Error(),
			})
			return res, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(raw) == 0 {
			s.logger.InfoWithFields("no more posts", map[string]interface{}{
				"page": page,
			})
			break
		}

		batch := normalize.Batch(raw, s.config.Scrape.StripHTML)
		if wm := normalize.LatestModified(batch); wm > res.LatestModified {
			res.LatestModified = wm
		}

		// store first, checkpoint second: a crash between the two re-fetches
		// at most one already-stored page, and upserts make that harmless
		if err := s.entities.UpsertBatch(ctx, batch); err != nil {
			return res, fmt.Errorf("store page %d: %w", page, err)
		}

		res.RecordsFetched += len(batch)
		res.TotalRecords += len(batch)

		if err := s.progress.Checkpoint(ctx, source, page, res.TotalRecords); err != nil {
			return res, fmt.Errorf("checkpoint page %d: %w", page, err)
		}

		res.LastPage = page
		res.PagesFetched++

		s.logger.InfoWithFields("page committed", map[string]interface{}{
			"page":    page,
			"posts":   len(batch),
			"session": res.RecordsFetched,
			"total":   res.TotalRecords,
		})
	}

	lastPage := res.LastPage
	if lastPage < 0 {
		lastPage = 0
	}
	if err := s.progress.Finalize(ctx, source, res.LatestModified, res.TotalRecords, lastPage, search, progress.StatusComplete); err != nil {
		return res, err
	}
	res.Status = progress.StatusComplete

	s.logger.InfoWithFields("session complete", map[string]interface{}{
		"pages":   res.PagesFetched,
		"records": res.RecordsFetched,
	})
	return res, nil
}

// runUpdate walks the modified_after-filtered collection from page 1. Pages
// of the filtered result set are not checkpointed; the filtered set is
// expected to be small and the watermark alone defines the next cutover.
func (s *Scraper) runUpdate(ctx context.Context, source, search string, p *plan) (*Result, error) {
	res := &Result{
		Mode:           ModeUpdate,
		StartPage:      1,
		TotalRecords:   p.baseTotal,
		LatestModified: p.baseWatermark,
		Status:         progress.StatusComplete,
	}

	q := wordpress.Query{Search: search, ModifiedAfter: p.modifiedAfter}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return s.finalizeInterrupted(source, search, p, res, err)
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return s.finalizeInterrupted(source, search, p, res, err)
		}

		raw, err := s.fetcher.FetchPage(ctx, page, q)
		if errors.Is(err, wordpress.ErrEndOfData) {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.finalizeInterrupted(source, search, p, res, err)
			}
			return res, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(raw) == 0 {
			break
		}

		batch := normalize.Batch(raw, s.config.Scrape.StripHTML)
		if wm := normalize.LatestModified(batch); wm > res.LatestModified {
			res.LatestModified = wm
		}

		if err := s.entities.UpsertBatch(ctx, batch); err != nil {
			return res, fmt.Errorf("store page %d: %w", page, err)
		}

		res.RecordsFetched += len(batch)
		res.TotalRecords += len(batch)
		res.PagesFetched++
	}

	if res.RecordsFetched == 0 {
		// nothing changed upstream: leave the stored session untouched
		s.logger.Info("no new or modified posts found")
		return res, nil
	}

	if err := s.progress.Finalize(ctx, source, res.LatestModified, res.TotalRecords, 0, search, progress.StatusComplete); err != nil {
		return res, err
	}

	s.logger.InfoWithFields("update complete", map[string]interface{}{
		"records":   res.RecordsFetched,
		"watermark": res.LatestModified,
	})
	return res, nil
}

// finalizeInterrupted records a deliberate stop using the last committed
// checkpoint, distinguishing it from a crash.
func (s *Scraper) finalizeInterrupted(source, search string, p *plan, res *Result, cause error) (*Result, error) {
	lastPage := res.LastPage
	if res.Mode == ModeUpdate {
		// the modified-after walk is date-ordered, not modified-ordered, so
		// the max seen in a partial walk overstates the cutover; keep the
		// prior watermark
		lastPage = 0
		res.LatestModified = p.baseWatermark
	}
	if lastPage < 0 {
		lastPage = 0
	}

	// the run context is cancelled; use a fresh one for the final write
	if err := s.progress.Finalize(context.Background(), source, res.LatestModified, res.TotalRecords, lastPage, search, progress.StatusInterrupted); err != nil {
		s.logger.WithError(err).Error("failed to record interruption")
	}
	res.Status = progress.StatusInterrupted

	s.logger.WarnWithFields("session interrupted", map[string]interface{}{
		"pages":   res.PagesFetched,
		"records": res.RecordsFetched,
	})
	return res, cause
}
