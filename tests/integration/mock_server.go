package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

type mockPost struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	DateGMT     string `json:"date_gmt"`
	Modified    string `json:"modified"`
	ModifiedGMT string `json:"modified_gmt"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Link        string `json:"link"`

	GUID    rendered `json:"guid"`
	Title   rendered `json:"title"`
	Content rendered `json:"content"`
	Excerpt rendered `json:"excerpt"`

	Author     int64   `json:"author"`
	Categories []int64 `json:"categories"`
	Tags       []int64 `json:"tags"`
}

type rendered struct {
	Rendered string `json:"rendered"`
}

// MockWordPressServer simulates a wp/v2 posts collection with pagination,
// search and modified_after filtering, matching the API's edge behavior
// (HTTP 400 for a page past the end, 200 with an empty array for page 1 of
// an empty result set).
type MockWordPressServer struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	posts        map[int64]*mockPost
	searchable   map[string][]int64
	pageRequests []int
	failFromPage int
	clock        time.Time
}

// NewMockWordPressServer creates a server seeded with n published posts whose
// modification times increase with the post ID.
func NewMockWordPressServer(t *testing.T, n int) *MockWordPressServer {
	t.Helper()

	s := &MockWordPressServer{
		t:     t,
		posts: make(map[int64]*mockPost),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/posts", s.handlePosts)
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	for i := 1; i <= n; i++ {
		s.addPost(int64(i))
	}

	return s
}

// URL returns the mock site's root URL.
func (s *MockWordPressServer) URL() string {
	return s.server.URL
}

func (s *MockWordPressServer) addPost(id int64) {
	s.clock = s.clock.Add(time.Hour)
	ts := s.clock.Format("2006-01-02T15:04:05")
	s.posts[id] = &mockPost{
		ID:          id,
		Date:        ts,
		DateGMT:     ts,
		Modified:    ts,
		ModifiedGMT: ts,
		Slug:        fmt.Sprintf("post-%d", id),
		Status:      "publish",
		Type:        "post",
		Link:        fmt.Sprintf("%s/post-%d/", s.server.URL, id),
		GUID:        rendered{Rendered: fmt.Sprintf("?p=%d", id)},
		Title:       rendered{Rendered: fmt.Sprintf("Post %d", id)},
		Content:     rendered{Rendered: fmt.Sprintf("<p>Content of post %d</p>", id)},
		Excerpt:     rendered{Rendered: fmt.Sprintf("<p>Excerpt %d</p>", id)},
		Author:      1,
		Categories:  []int64{1},
	}
}

// TouchPost bumps a post's modification time past every other post and
// changes its title.
func (s *MockWordPressServer) TouchPost(id int64, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = s.clock.Add(time.Hour)
	ts := s.clock.Format("2006-01-02T15:04:05")
	p := s.posts[id]
	p.Modified = ts
	p.ModifiedGMT = ts
	p.Title = rendered{Rendered: title}
}

// SetSearchable defines which post IDs each search phrase matches.
func (s *MockWordPressServer) SetSearchable(matches map[string][]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchable = matches
}

// FailFromPage makes every request for the given page or later fail with a
// 500. Zero clears the failure.
func (s *MockWordPressServer) FailFromPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFromPage = page
}

// PageRequests returns the page numbers requested so far, in order.
func (s *MockWordPressServer) PageRequests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pageRequests...)
}

// LatestModified returns the newest modified_gmt across all posts.
func (s *MockWordPressServer) LatestModified() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := ""
	for _, p := range s.posts {
		if p.ModifiedGMT > latest {
			latest = p.ModifiedGMT
		}
	}
	return latest
}

func (s *MockWordPressServer) handlePosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page == 0 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage == 0 {
		perPage = 10
	}

	s.pageRequests = append(s.pageRequests, page)

	if s.failFromPage > 0 && page >= s.failFromPage {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"code":"internal_server_error"}`)
		return
	}

	matched := s.filter(q.Get("search"), q.Get("modified_after"))
	if matched == nil {
		matched = []*mockPost{}
	}

	totalPages := (len(matched) + perPage - 1) / perPage
	if page > totalPages && page > 1 {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"rest_post_invalid_page_number","message":"The page number requested is larger than the number of pages available."}`)
		return
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-WP-Total", strconv.Itoa(len(matched)))
	w.Header().Set("X-WP-TotalPages", strconv.Itoa(totalPages))
	_ = json.NewEncoder(w).Encode(matched[start:end])
}

func (s *MockWordPressServer) filter(search, modifiedAfter string) []*mockPost {
	var ids []int64
	if search != "" {
		ids = s.searchable[search]
	} else {
		for id := range s.posts {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []*mockPost
	for _, id := range ids {
		p := s.posts[id]
		if modifiedAfter != "" && p.ModifiedGMT <= modifiedAfter {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}
