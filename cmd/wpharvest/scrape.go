package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wpharvest/pkg/auth"
	"wpharvest/pkg/config"
	"wpharvest/pkg/export"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/progress"
	"wpharvest/pkg/ratelimit"
	"wpharvest/pkg/scraper"
	"wpharvest/pkg/store"
	"wpharvest/pkg/wordpress"
)

var scrapeFlags struct {
	url         string
	search      string
	username    string
	outputDir   string
	outputName  string
	perPage     int
	maxPages    int
	startPage   int
	delay       time.Duration
	noStripHTML bool
	resume      bool
	update      bool
	formats     []string
	dryRun      bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape posts from a WordPress site",
	Long: `Scrape walks the site's posts collection page by page, storing every post
in a local SQLite database. Each page is committed before the next is
fetched, so an interrupted run can continue with --resume. After a complete
run, --update fetches only posts modified since the previous session.

When a search phrase is used, the session's checkpoint lineage is bound to
it; resuming or updating requires the same phrase.`,
	Example: `  # Full scrape
  wpharvest scrape --url https://example.com

  # Continue an interrupted scrape
  wpharvest scrape --url https://example.com --resume

  # Fetch only posts modified since the last complete run
  wpharvest scrape --url https://example.com --update

  # Filtered scrape with exports
  wpharvest scrape --url https://example.com --search golang --export json,csv`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeFlags.url, "url", "", "WordPress site URL (required unless configured)")
	scrapeCmd.Flags().StringVar(&scrapeFlags.search, "search", "", "search phrase to filter posts")
	scrapeCmd.Flags().StringVar(&scrapeFlags.username, "username", "", "stored account for authenticated access")
	scrapeCmd.Flags().StringVar(&scrapeFlags.outputDir, "output-dir", "", "directory for the database and exports")
	scrapeCmd.Flags().StringVar(&scrapeFlags.outputName, "output-name", "", "base name for output files")
	scrapeCmd.Flags().IntVar(&scrapeFlags.perPage, "per-page", 0, fmt.Sprintf("posts per page (max %d)", config.MaxPerPage))
	scrapeCmd.Flags().IntVar(&scrapeFlags.maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	scrapeCmd.Flags().IntVar(&scrapeFlags.startPage, "start-page", 0, "first page to fetch")
	scrapeCmd.Flags().DurationVar(&scrapeFlags.delay, "delay", -1, "minimum spacing between requests")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.noStripHTML, "no-strip-html", false, "keep HTML markup in text fields")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.resume, "resume", false, "continue from the last checkpoint")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.update, "update", false, "fetch only posts modified since the last session")
	scrapeCmd.Flags().StringSliceVar(&scrapeFlags.formats, "export", nil, "export formats after scraping (json, csv, xlsx)")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.dryRun, "dry-run", false, "validate configuration and endpoint, fetch nothing")
}

func scrapeConfig() (*config.Config, error) {
	flags := map[string]interface{}{
		"url":           scrapeFlags.url,
		"search":        scrapeFlags.search,
		"username":      scrapeFlags.username,
		"output-dir":    scrapeFlags.outputDir,
		"output-name":   scrapeFlags.outputName,
		"per-page":      scrapeFlags.perPage,
		"max-pages":     scrapeFlags.maxPages,
		"start-page":    scrapeFlags.startPage,
		"no-strip-html": scrapeFlags.noStripHTML,
		"resume":        scrapeFlags.resume,
		"update":        scrapeFlags.update,
		"log-level":     logLevel,
	}
	if scrapeFlags.delay >= 0 {
		flags["delay"] = scrapeFlags.delay
	}
	if len(scrapeFlags.formats) > 0 {
		flags["export"] = scrapeFlags.formats
	}
	return config.Load(configFile, flags)
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := scrapeConfig()
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := wordpress.NewClient(cfg.APIURL(), cfg.Scrape.PerPage, cfg.Scrape.RequestTimeout, &cfg.Retry, log)
	if cfg.Site.Username != "" {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		account, err := manager.Retrieve(cfg.SourceURL(), cfg.Site.Username)
		if err != nil {
			return fmt.Errorf("no stored credentials for %s; run 'wpharvest auth login' first: %w", cfg.Site.Username, err)
		}
		client.SetBasicAuth(account.Username, account.AppPassword)
	}

	if scrapeFlags.dryRun {
		if err := client.Validate(ctx); err != nil {
			return fmt.Errorf("endpoint validation failed: %w", err)
		}
		total, err := client.TotalPosts(ctx)
		if err == nil && total > 0 {
			fmt.Printf("OK: %s (%d posts)\n", cfg.APIURL(), total)
		} else {
			fmt.Printf("OK: %s\n", cfg.APIURL())
		}
		return nil
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	posts, err := store.Open(cfg.DatabasePath(), log)
	if err != nil {
		return err
	}
	defer posts.Close()

	sessions, err := progress.Open(cfg.MetadataPath(), log)
	if err != nil {
		return err
	}
	defer sessions.Close()

	s := scraper.New(cfg, client, posts, sessions, ratelimit.NewInterval(cfg.Scrape.Delay), log)

	result, err := s.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("scrape interrupted; run again with --resume to continue")
		}
		return err
	}

	fmt.Printf("Scraped %d posts across %d pages (%d stored in total)\n",
		result.RecordsFetched, result.PagesFetched, result.TotalRecords)

	if len(cfg.Output.Formats) > 0 {
		all, err := posts.All(ctx)
		if err != nil {
			return err
		}
		if err := export.Run(ctx, all, cfg.Output.Formats, cfg.ExportPath, log); err != nil {
			return err
		}
	}

	return nil
}
