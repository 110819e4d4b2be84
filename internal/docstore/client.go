// Package docstore talks to the Elasticsearch index that holds Kibana
// dashboards. It only needs fetch-all, fetch-by-id, put and delete.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rowjay/kibana-dashboard-backup/internal/config"
)

var (
	// ErrUnavailable wraps transport failures talking to Elasticsearch.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrNotFound is returned when a dashboard id does not exist.
	ErrNotFound = errors.New("dashboard not found")
	// ErrTruncated is returned when fetch-all did not return every document.
	ErrTruncated = errors.New("search result truncated")
)

// StatusError carries an unexpected HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client is a minimal Elasticsearch client scoped to one index/type.
type Client struct {
	baseURL   string
	http      *http.Client
	username  string
	password  string
	fetchSize int
}

func New(cfg config.SearchConfig) *Client {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	docType := cfg.DocType
	if docType == "" {
		docType = "_doc"
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	base := url.URL{
		Scheme: scheme,
		Host:   hostPort(cfg.Host, cfg.Port),
		Path:   "/" + strings.Trim(cfg.Index, "/") + "/" + docType,
	}
	return &Client{
		baseURL:   base.String(),
		http:      &http.Client{Timeout: timeout},
		username:  cfg.Username,
		password:  cfg.Password,
		fetchSize: cfg.FetchSize,
	}
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// Search fetches the whole collection with a match-all query and returns the
// raw response body. The body is checked, not rewritten: if the index holds
// more documents than fetch_size, ErrTruncated is returned instead of a
// partial envelope.
func (c *Client) Search(ctx context.Context) ([]byte, error) {
	path := "/_search?q=*&size=" + strconv.Itoa(c.fetchSize)
	code, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: code, Body: string(body)}
	}
	res, err := ParseSearchResult(body)
	if err != nil {
		return nil, err
	}
	if res.Truncated() {
		return nil, fmt.Errorf("%w: index holds %d dashboards, fetch_size is %d", ErrTruncated, res.Hits.Total.Value, c.fetchSize)
	}
	return body, nil
}

// SearchAll is Search followed by ParseSearchResult.
func (c *Client) SearchAll(ctx context.Context) (*SearchResult, error) {
	body, err := c.Search(ctx)
	if err != nil {
		return nil, err
	}
	return ParseSearchResult(body)
}

// Get returns the _source of one dashboard.
func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	path := "/" + url.PathEscape(id)
	code, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if code != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: code, Body: string(body)}
	}
	var doc struct {
		Found  *bool           `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode dashboard %s: %w", id, err)
	}
	if (doc.Found != nil && !*doc.Found) || len(doc.Source) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc.Source, nil
}

// Put creates or replaces the dashboard at id. Writing the same source to
// the same id twice leaves the index unchanged.
func (c *Client) Put(ctx context.Context, id string, source []byte) error {
	path := "/" + url.PathEscape(id)
	code, body, err := c.do(ctx, http.MethodPut, path, source)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return &StatusError{Method: http.MethodPut, Path: path, Code: code, Body: string(body)}
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/" + url.PathEscape(id)
	code, body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return &StatusError{Method: http.MethodDelete, Path: path, Code: code, Body: string(body)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read %s %s: %v", ErrUnavailable, method, path, err)
	}
	return resp.StatusCode, body, nil
}
