// Package kinopoisk looks up Kinopoisk ratings through the kinopoisk.dev API.
package kinopoisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultBaseURL = "https://api.kinopoisk.dev"

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("kinopoisk: no api key")

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string
	Title string
	Year  int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kinopoisk %s [%s (%d)]: %v", e.Op, e.Title, e.Year, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rating is a matched Kinopoisk score.
type Rating struct {
	ID    int     `json:"id"`
	Value float64 `json:"value"` // out of 10
	Votes int     `json:"votes"`
}

// URL returns the Kinopoisk page.
func (r Rating) URL() string {
	return "https://www.kinopoisk.ru/film/" + strconv.Itoa(r.ID) + "/"
}

type rawDoc struct {
	ID     int `json:"id"`
	Year   int `json:"year"`
	Rating struct {
		KP float64 `json:"kp"`
	} `json:"rating"`
	Votes struct {
		KP int `json:"kp"`
	} `json:"votes"`
}

type rawSearch struct {
	Docs []rawDoc `json:"docs"`
}

// Client is a kinopoisk.dev client.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// New creates a client. baseURL may be empty for the public API.
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

// Search finds title and returns the rating of the first result released in
// year. It reports false when nothing matches or the match has no rating.
func (c *Client) Search(ctx context.Context, title string, year int) (Rating, bool, error) {
	if !c.Enabled() {
		return Rating{}, false, &Error{Op: "search", Title: title, Year: year, Err: ErrNoAPIKey}
	}

	q := url.Values{"page": {"1"}, "limit": {"10"}, "query": {title}}
	body, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/v1.4/movie/search?" + q.Encode(),
		Header: http.Header{
			"Accept":    {"application/json"},
			"X-API-KEY": {c.apiKey},
		},
	})
	if err != nil {
		return Rating{}, false, &Error{Op: "search", Title: title, Year: year, Err: err}
	}

	var resp rawSearch
	if err := json.Unmarshal(body, &resp); err != nil {
		return Rating{}, false, &Error{Op: "search", Title: title, Year: year, Err: fmt.Errorf("decode response: %w", err)}
	}

	for _, d := range resp.Docs {
		if d.Year != year {
			continue
		}
		if d.Rating.KP <= 0 {
			return Rating{}, false, nil
		}
		return Rating{ID: d.ID, Value: d.Rating.KP, Votes: d.Votes.KP}, true, nil
	}
	return Rating{}, false, nil
}
