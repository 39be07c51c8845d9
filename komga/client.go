// Package komga is a thin client for the slice of the Komga REST API the
// reader core consumes: page catalogs, page images, read progress, next-book
// resolution and series reading direction. It implements the collaborator
// interfaces in the reader package.
package komga

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"

	"knav/reader"
)

const defaultTimeout = 30 * time.Second

// Client talks to one Komga server. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client

	imageAttempts uint
	imageDelay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates with an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBasicAuth authenticates with username and password.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithImageRetry tunes the retry policy for page image fetches.
func WithImageRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.imageAttempts = attempts
		c.imageDelay = delay
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: defaultTimeout},
		imageAttempts: 3,
		imageDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// pageDTO is the Komga page descriptor.
type pageDTO struct {
	Number    int    `json:"number"`
	FileName  string `json:"fileName"`
	MediaType string `json:"mediaType"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// bookDTO is the subset of the Komga book resource the reader needs.
type bookDTO struct {
	ID       string `json:"id"`
	SeriesID string `json:"seriesId"`
	Name     string `json:"name"`
}

// seriesDTO carries the series metadata the reader consults.
type seriesDTO struct {
	ID       string `json:"id"`
	Metadata struct {
		ReadingDirection string `json:"readingDirection"`
	} `json:"metadata"`
}

// LoadCatalog fetches the ordered page descriptors for a book. A server
// that reports no pages, or rejects the book as unreadable, yields
// reader.ErrCatalogUnavailable.
func (c *Client) LoadCatalog(ctx context.Context, bookID string) ([]reader.Page, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(bookID)+"/pages", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching pages for %s: %w", bookID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("book %s not readable (status %d): %w", bookID, resp.StatusCode, reader.ErrCatalogUnavailable)
	default:
		return nil, fmt.Errorf("fetching pages for %s: unexpected status %d", bookID, resp.StatusCode)
	}

	var dtos []pageDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decoding pages for %s: %w", bookID, err)
	}
	if len(dtos) == 0 {
		return nil, fmt.Errorf("book %s has no pages: %w", bookID, reader.ErrCatalogUnavailable)
	}

	pages := make([]reader.Page, 0, len(dtos))
	for i, d := range dtos {
		pages = append(pages, reader.Page{
			Index:    i,
			Number:   d.Number,
			FileName: d.FileName,
			Width:    d.Width,
			Height:   d.Height,
		})
	}
	return pages, nil
}

// FetchImage fetches the raw bytes of one page, retrying transient
// failures. pageIndex is 0-based; the wire endpoint is 1-based.
func (c *Client) FetchImage(ctx context.Context, bookID string, pageIndex int) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/books/%s/pages/%d", url.PathEscape(bookID), pageIndex+1)

	var data []byte
	err := retry.Do(
		func() error {
			req, err := c.newRequest(ctx, http.MethodGet, path, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("page %d of %s not found", pageIndex, bookID))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("page %d of %s: status %d", pageIndex, bookID, resp.StatusCode)
			}
			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.imageAttempts),
		retry.Delay(c.imageDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveProgress persists read progress upstream. Fire-and-forget: it
// returns immediately and failures are logged, never surfaced. Reading is
// never blocked on progress persistence.
func (c *Client) SaveProgress(bookID string, pageNumber int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := c.saveProgress(ctx, bookID, pageNumber); err != nil {
			log.Printf("Warning: saving progress for %s: %v", bookID, err)
		}
	}()
}

func (c *Client) saveProgress(ctx context.Context, bookID string, pageNumber int) error {
	body := fmt.Sprintf(`{"page":%d}`, pageNumber)
	req, err := c.newRequest(ctx, http.MethodPatch,
		"/api/v1/books/"+url.PathEscape(bookID)+"/read-progress", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NextBook resolves the book following bookID in its series or read list.
// Absence (404 or an empty response) is not an error.
func (c *Client) NextBook(ctx context.Context, bookID string) (string, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(bookID)+"/next", nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("resolving next book after %s: %w", bookID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		return "", false, nil
	case http.StatusOK:
	default:
		return "", false, fmt.Errorf("resolving next book after %s: status %d", bookID, resp.StatusCode)
	}

	var book bookDTO
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return "", false, fmt.Errorf("decoding next book after %s: %w", bookID, err)
	}
	if book.ID == "" {
		return "", false, nil
	}
	return book.ID, true, nil
}

// SeriesDirection reports a series' reading direction from its metadata.
// Missing or unparseable metadata is reported as absent, not an error, so
// callers fall back to their current direction.
func (c *Client) SeriesDirection(ctx context.Context, seriesID string) (reader.Direction, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/series/"+url.PathEscape(seriesID), nil)
	if err != nil {
		return reader.DirectionLTR, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reader.DirectionLTR, false, fmt.Errorf("fetching series %s: %w", seriesID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return reader.DirectionLTR, false, fmt.Errorf("fetching series %s: status %d", seriesID, resp.StatusCode)
	}

	var series seriesDTO
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return reader.DirectionLTR, false, fmt.Errorf("decoding series %s: %w", seriesID, err)
	}
	dir, ok := reader.ParseDirection(series.Metadata.ReadingDirection)
	return dir, ok, nil
}

// BookInfo is a book summary for callers that need the owning series.
type BookInfo struct {
	ID       string
	SeriesID string
	Name     string
}

// Book fetches a book's basic metadata, used by the CLI driver to discover
// the owning series before opening a session.
func (c *Client) Book(ctx context.Context, bookID string) (*BookInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(bookID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching book %s: %w", bookID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching book %s: status %d", bookID, resp.StatusCode)
	}

	var book bookDTO
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fmt.Errorf("decoding book %s: %w", bookID, err)
	}
	return &BookInfo{ID: book.ID, SeriesID: book.SeriesID, Name: book.Name}, nil
}
