package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"wpharvest/pkg/config"
	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
	"wpharvest/pkg/retry"
)

// ErrEndOfData signals that the requested page lies beyond the collection's
// last page. It is a loop-termination signal, not a failure.
var ErrEndOfData = errors.New("page out of range")

// Client fetches pages from a WordPress REST posts endpoint. Transient
// failures (429, 5xx, network) are retried internally with bounded backoff;
// everything the policy gives up on surfaces as a typed error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	perPage    int
	headers    map[string]string
	username   string
	password   string
	retryCfg   *retry.Config
	logger     logger.Logger
}

// NewClient creates a posts-endpoint client. perPage is capped at the API's
// maximum. The retry policy comes from validated configuration.
func NewClient(baseURL string, perPage int, timeout time.Duration, retryCfg *config.RetryConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if perPage > config.MaxPerPage {
		perPage = config.MaxPerPage
	}

	rc := retry.FromConfig(retryCfg, log)
	baseRetryIf := rc.RetryIf
	rc.RetryIf = func(err error) bool {
		if errors.Is(err, ErrEndOfData) {
			return false
		}
		return baseRetryIf(err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		perPage:    perPage,
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "wpharvest/1.0",
		},
		retryCfg: rc,
		logger:   log,
	}
}

// SetHeader sets a custom header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetBasicAuth attaches application-password credentials to every request.
func (c *Client) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// PerPage returns the effective page size.
func (c *Client) PerPage() int {
	return c.perPage
}

// FetchPage fetches a single page of posts. A client-class response on the
// page parameter means the page is beyond range and returns ErrEndOfData.
func (c *Client) FetchPage(ctx context.Context, page int, q Query) ([]RawPost, error) {
	if page < 1 {
		return nil, errs.Newf(errs.ErrorTypeConfig, "page must be positive, got %d", page)
	}

	url := PageURL(c.baseURL, page, c.perPage, q)

	var posts []RawPost
	op := func() error {
		var err error
		posts, err = c.fetchOnce(ctx, url, page)
		return err
	}

	cfg := *c.retryCfg
	cfg.Context = ctx
	if err := retry.Do(op, &cfg); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string, page int) ([]RawPost, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.classifyStatus(resp, page); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	c.logTotals(resp, page)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var posts []RawPost
	if err := json.Unmarshal(body, &posts); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse posts response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return posts, nil
}

// get performs one GET with the configured headers and auth.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// classifyStatus maps a non-2xx response to the error taxonomy. HTTP 400 on a
// page request means the page number ran past the collection's end.
func (c *Client) classifyStatus(resp *http.Response, page int) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		c.logger.DebugWithFields("page is out of range", map[string]interface{}{
			"page": page,
		})
		return ErrEndOfData
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "endpoint not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("server returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// logTotals reports the collection totals the API exposes through response
// headers. They are informational only and never drive the paging loop.
func (c *Client) logTotals(resp *http.Response, page int) {
	totalPages := resp.Header.Get("X-WP-TotalPages")
	totalPosts := resp.Header.Get("X-WP-Total")
	if totalPages != "" {
		c.logger.DebugWithFields("collection totals", map[string]interface{}{
			"page":        page,
			"total_pages": totalPages,
			"total_posts": totalPosts,
		})
	}
}

// TotalPosts reads the total post count from the X-WP-Total header. The count
// is informational; a missing header is not an error.
func (c *Client) TotalPosts(ctx context.Context) (int, error) {
	resp, err := c.get(ctx, PageURL(c.baseURL, 1, 1, Query{}))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, c.classifyStatus(resp, 1)
	}

	total := resp.Header.Get("X-WP-Total")
	if total == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, errs.Newf(errs.ErrorTypeParsing, "invalid X-WP-Total header: %q", total)
	}
	return n, nil
}

// Validate probes the endpoint with a minimal request.
func (c *Client) Validate(ctx context.Context) error {
	resp, err := c.get(ctx, PageURL(c.baseURL, 1, 1, Query{}))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp, 1)
	}
	return nil
}
