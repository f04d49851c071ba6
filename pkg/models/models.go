package models

// Post is the flat persisted form of a WordPress post. Temporal fields keep
// the API's ISO-8601 strings: the GMT variants are lexicographically ordered,
// which is what the update-mode watermark comparison relies on.
type Post struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	DateGMT     string `json:"date_gmt"`
	GUID        string `json:"guid"`
	Modified    string `json:"modified"`
	ModifiedGMT string `json:"modified_gmt"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Link        string `json:"link"`

	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`

	Author        int64  `json:"author"`
	FeaturedMedia int64  `json:"featured_media"`
	CommentStatus string `json:"comment_status"`
	PingStatus    string `json:"ping_status"`
	Sticky        bool   `json:"sticky"`
	Template      string `json:"template"`
	Format        string `json:"format"`

	// Meta holds the raw meta object serialized as JSON.
	Meta string `json:"meta"`

	// Flattened relations: comma-joined ID lists.
	Categories string `json:"categories"`
	Tags       string `json:"tags"`
	Area       string `json:"area"`
	Alerts     string `json:"alerts"`
	Countries  string `json:"countries"`
	ClassList  string `json:"class_list"`
}
