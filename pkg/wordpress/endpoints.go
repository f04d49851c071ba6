package wordpress

import (
	"fmt"
	"net/url"
	"strconv"
)

// Query carries the optional filters applied to a collection request.
type Query struct {
	// Search is a phrase the API matches against post content.
	Search string
	// ModifiedAfter limits results to posts modified strictly after the
	// given ISO-8601 timestamp.
	ModifiedAfter string
}

// PageURL builds the collection URL for one page request.
func PageURL(base string, page, perPage int, q Query) string {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.ModifiedAfter != "" {
		params.Set("modified_after", q.ModifiedAfter)
	}
	return fmt.Sprintf("%s?%s", base, params.Encode())
}
