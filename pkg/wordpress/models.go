package wordpress

import "encoding/json"

// RenderedField wraps the {"rendered": "..."} objects the REST API uses for
// content that passed through WordPress's rendering pipeline.
type RenderedField struct {
	Rendered  string `json:"rendered"`
	Protected bool   `json:"protected,omitempty"`
}

// RawPost models one post object from the wp/v2 posts collection. Fields the
// site's plugins add (area, alerts, countries) are optional arrays; meta is
// kept raw because its shape is site-specific.
type RawPost struct {
	ID          int64         `json:"id"`
	Date        string        `json:"date"`
	DateGMT     string        `json:"date_gmt"`
	GUID        RenderedField `json:"guid"`
	Modified    string        `json:"modified"`
	ModifiedGMT string        `json:"modified_gmt"`
	Slug        string        `json:"slug"`
	Status      string        `json:"status"`
	Type        string        `json:"type"`
	Link        string        `json:"link"`

	Title   RenderedField `json:"title"`
	Content RenderedField `json:"content"`
	Excerpt RenderedField `json:"excerpt"`

	Author        int64  `json:"author"`
	FeaturedMedia int64  `json:"featured_media"`
	CommentStatus string `json:"comment_status"`
	PingStatus    string `json:"ping_status"`
	Sticky        bool   `json:"sticky"`
	Template      string `json:"template"`
	Format        string `json:"format"`

	Meta json.RawMessage `json:"meta"`

	Categories []int64  `json:"categories"`
	Tags       []int64  `json:"tags"`
	Area       []int64  `json:"area"`
	Alerts     []int64  `json:"alerts"`
	Countries  []int64  `json:"countries"`
	ClassList  []string `json:"class_list"`
}
