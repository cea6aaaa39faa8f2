// Package mdblist fetches aggregated ratings from the MDBList API.
package mdblist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultBaseURL = "https://api.mdblist.com"

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("mdblist: no api key")

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string
	Key string // "movie/603"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mdblist %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rating is one source entry. Nil fields were absent in the response.
type Rating struct {
	Source string   `json:"source"`
	Value  *float64 `json:"value"`
	Score  *float64 `json:"score"`
	Votes  *float64 `json:"votes"`
	URL    string   `json:"url,omitempty"`
}

// Result is the subset of an MDBList title response the carousel uses.
type Result struct {
	IMDbID  string   `json:"imdbid"`
	TMDbID  int      `json:"tmdbid,omitempty"`
	Title   string   `json:"title,omitempty"`
	Year    int      `json:"year,omitempty"`
	Ratings []Rating `json:"ratings"`
}

// Find returns the entry for source, if any.
func (r *Result) Find(source string) (Rating, bool) {
	for _, rt := range r.Ratings {
		if strings.EqualFold(rt.Source, source) {
			return rt, true
		}
	}
	return Rating{}, false
}

// Client is an MDBList API client.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// New creates a client. baseURL may be empty for the public endpoint.
func New(hc *httpx.Client, apiKey, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, logger: logger}
}

// Enabled reports whether the client can make requests.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// ByTMDb fetches ratings by TMDb id. mediaType is "movie" or "show".
func (c *Client) ByTMDb(ctx context.Context, mediaType, tmdbID string) (*Result, error) {
	return c.fetch(ctx, "tmdb", mediaType, tmdbID)
}

// ByIMDb fetches ratings by IMDb id.
func (c *Client) ByIMDb(ctx context.Context, mediaType, imdbID string) (*Result, error) {
	return c.fetch(ctx, "imdb", mediaType, imdbID)
}

func (c *Client) fetch(ctx context.Context, idType, mediaType, id string) (*Result, error) {
	key := mediaType + "/" + id
	if !c.Enabled() {
		return nil, &Error{Op: idType, Key: key, Err: ErrNoAPIKey}
	}

	u := fmt.Sprintf("%s/%s/%s/%s?apikey=%s",
		c.baseURL, idType, url.PathEscape(mediaType), url.PathEscape(id), url.QueryEscape(c.apiKey))

	body, err := c.http.Get(ctx, u, "application/json")
	if err != nil {
		return nil, &Error{Op: idType, Key: key, Err: err}
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &Error{Op: idType, Key: key, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("mdblist ratings", "key", key, "sources", len(res.Ratings))
	return &res, nil
}
