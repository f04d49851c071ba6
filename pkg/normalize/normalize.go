// Package normalize flattens raw WordPress posts into the persisted record
// shape: rendered wrappers unwrapped, relations joined into delimited
// strings, unmodeled metadata serialized as JSON.
package normalize

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"wpharvest/pkg/models"
	"wpharvest/pkg/wordpress"
)

// stripPolicy removes every tag; entities are unescaped afterwards so the
// stored text reads naturally.
var stripPolicy = bluemonday.StrictPolicy()

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

// JoinIDs flattens an ID list into a comma-delimited string.
func JoinIDs(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Post converts a raw API post into its flat persisted form. stripHTML
// controls whether rendered content fields keep their markup.
func Post(raw wordpress.RawPost, stripHTML bool) models.Post {
	title := raw.Title.Rendered
	content := raw.Content.Rendered
	excerpt := raw.Excerpt.Rendered
	if stripHTML {
		title = StripHTML(title)
		content = StripHTML(content)
		excerpt = StripHTML(excerpt)
	}

	meta := ""
	if len(raw.Meta) > 0 {
		meta = string(raw.Meta)
	}

	return models.Post{
		ID:          raw.ID,
		Date:        raw.Date,
		DateGMT:     raw.DateGMT,
		GUID:        raw.GUID.Rendered,
		Modified:    raw.Modified,
		ModifiedGMT: raw.ModifiedGMT,
		Slug:        raw.Slug,
		Status:      raw.Status,
		Type:        raw.Type,
		Link:        raw.Link,

		Title:   title,
		Content: content,
		Excerpt: excerpt,

		Author:        raw.Author,
		FeaturedMedia: raw.FeaturedMedia,
		CommentStatus: raw.CommentStatus,
		PingStatus:    raw.PingStatus,
		Sticky:        raw.Sticky,
		Template:      raw.Template,
		Format:        raw.Format,

		Meta:       meta,
		Categories: JoinIDs(raw.Categories),
		Tags:       JoinIDs(raw.Tags),
		Area:       JoinIDs(raw.Area),
		Alerts:     JoinIDs(raw.Alerts),
		Countries:  JoinIDs(raw.Countries),
		ClassList:  strings.Join(raw.ClassList, ","),
	}
}

// Batch converts a page of raw posts.
func Batch(raw []wordpress.RawPost, stripHTML bool) []models.Post {
	posts := make([]models.Post, len(raw))
	for i, r := range raw {
		posts[i] = Post(r, stripHTML)
	}
	return posts
}

// LatestModified returns the maximum modified_gmt timestamp in the batch, or
// the empty string if none is set. ISO-8601 GMT strings order correctly
// under lexicographic comparison.
func LatestModified(posts []models.Post) string {
	latest := ""
	for _, p := range posts {
		if p.ModifiedGMT > latest {
			latest = p.ModifiedGMT
		}
	}
	return latest
}
