// Package export writes stored posts out to interchange formats. Exports are
// always derived from the database, never from an in-flight scrape, so a
// partial session still exports a consistent snapshot.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/models"
)

// Exporter writes a full post set to a destination file.
type Exporter interface {
	Export(ctx context.Context, posts []models.Post, path string) error
	Format() string
}

// New returns the exporter for a format tag (json, csv or xlsx).
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &jsonExporter{}, nil
	case "csv":
		return &csvExporter{}, nil
	case "xlsx":
		return &xlsxExporter{}, nil
	default:
		return nil, errs.Newf(errs.ErrorTypeConfig, "unsupported export format: %s", format)
	}
}

// Run exports posts to every requested format, writing files next to the
// database under the configured output name.
func Run(ctx context.Context, posts []models.Post, formats []string, pathFor func(format string) string, log logger.Logger) error {
	if log == nil {
		log = logger.GetLogger()
	}
	for _, format := range formats {
		exp, err := New(format)
		if err != nil {
			return err
		}
		path := pathFor(exp.Format())
		if err := exp.Export(ctx, posts, path); err != nil {
			return err
		}
		log.InfoWithFields("export written", map[string]interface{}{
			"format": exp.Format(),
			"path":   path,
			"posts":  len(posts),
		})
	}
	return nil
}

// header is the column order shared by the csv and xlsx exporters.
var header = []string{
	"id", "date", "date_gmt", "guid", "modified", "modified_gmt", "slug",
	"status", "type", "link", "title", "content", "excerpt", "author",
	"featured_media", "comment_status", "ping_status", "sticky", "template",
	"format", "meta", "categories", "tags", "area", "alerts", "countries",
	"class_list",
}

func record(p models.Post) []string {
	return []string{
		strconv.FormatInt(p.ID, 10), p.Date, p.DateGMT, p.GUID, p.Modified,
		p.ModifiedGMT, p.Slug, p.Status, p.Type, p.Link, p.Title, p.Content,
		p.Excerpt, strconv.FormatInt(p.Author, 10),
		strconv.FormatInt(p.FeaturedMedia, 10), p.CommentStatus, p.PingStatus,
		strconv.FormatBool(p.Sticky), p.Template, p.Format, p.Meta,
		p.Categories, p.Tags, p.Area, p.Alerts, p.Countries, p.ClassList,
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "create export directory: %v", err)
	}
	return nil
}

type jsonExporter struct{}

func (jsonExporter) Format() string { return "json" }

func (jsonExporter) Export(ctx context.Context, posts []models.Post, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "create json export: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if posts == nil {
		posts = []models.Post{}
	}
	if err := enc.Encode(posts); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "write json export: %v", err)
	}
	return f.Close()
}

type csvExporter struct{}

func (csvExporter) Format() string { return "csv" }

func (csvExporter) Export(ctx context.Context, posts []models.Post, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "create csv export: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "write csv header: %v", err)
	}
	for _, p := range posts {
		if err := w.Write(record(p)); err != nil {
			return errs.Newf(errs.ErrorTypeStorage, "write csv row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "flush csv export: %v", err)
	}
	return f.Close()
}

type xlsxExporter struct{}

func (xlsxExporter) Format() string { return "xlsx" }

const sheetName = "Posts"

func (xlsxExporter) Export(ctx context.Context, posts []models.Post, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "create xlsx sheet: %v", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "prune default sheet: %v", err)
	}

	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return errs.Newf(errs.ErrorTypeStorage, "address xlsx cell: %v", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return errs.Newf(errs.ErrorTypeStorage, "write xlsx header: %v", err)
		}
	}

	for row, p := range posts {
		for col, value := range record(p) {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return errs.Newf(errs.ErrorTypeStorage, "address xlsx cell: %v", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return errs.Newf(errs.ErrorTypeStorage, "write xlsx row: %v", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errs.Newf(errs.ErrorTypeStorage, "save xlsx export: %v", err)
	}
	return nil
}

// Formats lists the supported export format tags.
func Formats() []string {
	return []string{"json", "csv", "xlsx"}
}
