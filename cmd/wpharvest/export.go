package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wpharvest/pkg/config"
	"wpharvest/pkg/export"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/store"
)

var exportFlags struct {
	outputDir  string
	outputName string
	formats    []string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored posts to JSON, CSV or XLSX",
	Long: `Export reads the posts database and writes it out in the requested
formats. Exports always reflect the database, so a partially scraped site
exports whatever has been stored so far.`,
	Example: `  # Export everything as JSON
  wpharvest export --format json

  # Multiple formats at once
  wpharvest export --format json,csv,xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFlags.outputDir, "output-dir", "", "directory holding the database and exports")
	exportCmd.Flags().StringVar(&exportFlags.outputName, "output-name", "", "base name of the database")
	exportCmd.Flags().StringSliceVar(&exportFlags.formats, "format", []string{"json"}, "export formats (json, csv, xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output-dir":  exportFlags.outputDir,
		"output-name": exportFlags.outputName,
		"export":      exportFlags.formats,
		"log-level":   logLevel,
	})

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()

	posts, err := store.Open(cfg.DatabasePath(), log)
	if err != nil {
		return err
	}
	defer posts.Close()

	ctx := context.Background()
	all, err := posts.All(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("no posts stored in %s; scrape first", cfg.DatabasePath())
	}

	if err := export.Run(ctx, all, cfg.Output.Formats, cfg.ExportPath, log); err != nil {
		return err
	}

	fmt.Printf("Exported %d posts\n", len(all))
	return nil
}
