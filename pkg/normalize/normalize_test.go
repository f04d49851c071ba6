package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"wpharvest/pkg/models"
	"wpharvest/pkg/wordpress"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"empty", "", ""},
		{"tags removed", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities unescaped", "Fish &amp; Chips", "Fish & Chips"},
		{"script dropped", `<script>alert("x")</script>ok`, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "", JoinIDs(nil))
	assert.Equal(t, "7", JoinIDs([]int64{7}))
	assert.Equal(t, "1,2,3", JoinIDs([]int64{1, 2, 3}))
}

func TestPostConversion(t *testing.T) {
	raw := wordpress.RawPost{
		ID:          42,
		Date:        "2024-01-15T10:00:00",
		DateGMT:     "2024-01-15T09:00:00",
		GUID:        wordpress.RenderedField{Rendered: "https://example.com/?p=42"},
		Modified:    "2024-02-01T08:30:00",
		ModifiedGMT: "2024-02-01T07:30:00",
		Slug:        "hello-world",
		Status:      "publish",
		Type:        "post",
		Link:        "https://example.com/hello-world/",
		Title:       wordpress.RenderedField{Rendered: "<b>Hello</b> World"},
		Content:     wordpress.RenderedField{Rendered: "<p>Body &amp; soul</p>"},
		Excerpt:     wordpress.RenderedField{Rendered: "<p>Short</p>"},
		Author:      3,
		Sticky:      true,
		Meta:        json.RawMessage(`{"footnotes":""}`),
		Categories:  []int64{1, 5},
		Tags:        []int64{9},
		ClassList:   []string{"post-42", "status-publish"},
	}

	p := Post(raw, true)
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, "Body & soul", p.Content)
	assert.Equal(t, "Short", p.Excerpt)
	assert.Equal(t, "https://example.com/?p=42", p.GUID)
	assert.Equal(t, "1,5", p.Categories)
	assert.Equal(t, "9", p.Tags)
	assert.Equal(t, "post-42,status-publish", p.ClassList)
	assert.Equal(t, `{"footnotes":""}`, p.Meta)
	assert.True(t, p.Sticky)
}

func TestPostKeepsMarkupWhenStripDisabled(t *testing.T) {
	raw := wordpress.RawPost{
		ID:      1,
		Title:   wordpress.RenderedField{Rendered: "<b>Hello</b>"},
		Content: wordpress.RenderedField{Rendered: "<p>Body</p>"},
	}

	p := Post(raw, false)
	assert.Equal(t, "<b>Hello</b>", p.Title)
	assert.Equal(t, "<p>Body</p>", p.Content)
}

func TestBatch(t *testing.T) {
	raw := []wordpress.RawPost{
		{ID: 1, Title: wordpress.RenderedField{Rendered: "one"}},
		{ID: 2, Title: wordpress.RenderedField{Rendered: "two"}},
	}

	posts := Batch(raw, true)
	assert.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, int64(2), posts[1].ID)
}

func TestLatestModified(t *testing.T) {
	posts := []models.Post{
		{ModifiedGMT: "2024-01-15T10:00:00"},
		{ModifiedGMT: "2024-03-02T08:00:00"},
		{ModifiedGMT: "2024-02-20T23:59:59"},
	}
	assert.Equal(t, "2024-03-02T08:00:00", LatestModified(posts))

	assert.Equal(t, "", LatestModified(nil))
	assert.Equal(t, "", LatestModified([]models.Post{{}}))
}
