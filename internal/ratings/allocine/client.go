// Package allocine scrapes press and spectator ratings from AlloCiné title
// pages. Pages are only fetched through the scrape proxy.
package allocine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultBaseURL = "https://www.allocine.fr"

var idPattern = regexp.MustCompile(`^\d+$`)

// Sentinel errors.
var (
	ErrDisabled  = errors.New("allocine: no proxy configured")
	ErrInvalidID = errors.New("allocine: invalid id")
	ErrNoRatings = errors.New("allocine: page has no ratings")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("allocine %s [%s]: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Scores holds ratings out of 5. Nil means the page had none.
type Scores struct {
	Press      *float64 `json:"press,omitempty"`
	Spectators *float64 `json:"spectators,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Client fetches AlloCiné pages.
type Client struct {
	http    *httpx.Client
	proxy   httpx.Proxy
	baseURL string
	logger  *slog.Logger
}

// New creates a client. Without an enabled proxy the client is inert.
func New(hc *httpx.Client, proxy httpx.Proxy, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, proxy: proxy, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Enabled reports whether pages can be fetched.
func (c *Client) Enabled() bool {
	return c != nil && c.proxy.Enabled()
}

// PageURL returns the title page. mediaType is "movie" or "show".
func PageURL(base, id, mediaType string) string {
	if mediaType == "show" {
		return base + "/series/ficheserie_gen_cserie=" + id + ".html"
	}
	return base + "/film/fichefilm_gen_cfilm=" + id + ".html"
}

// Scores fetches and parses the ratings for id.
func (c *Client) Scores(ctx context.Context, id, mediaType string) (*Scores, error) {
	if !c.Enabled() {
		return nil, &Error{Op: "scores", ID: id, Err: ErrDisabled}
	}
	if !idPattern.MatchString(id) {
		return nil, &Error{Op: "scores", ID: id, Err: ErrInvalidID}
	}

	body, err := c.http.Get(ctx, c.proxy.Wrap(PageURL(c.baseURL, id, mediaType)), "text/html")
	if err != nil {
		return nil, &Error{Op: "scores", ID: id, Err: err}
	}

	scores, err := Parse(body)
	if err != nil {
		return nil, &Error{Op: "scores", ID: id, Err: err}
	}
	scores.URL = PageURL(defaultBaseURL, id, mediaType)
	return scores, nil
}

// Parse reads the rating blocks of a title page. It is a pure function of
// its input.
func Parse(html []byte) (*Scores, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var s Scores
	doc.Find(".rating-item").Each(func(_ int, item *goquery.Selection) {
		title := strings.ToLower(strings.TrimSpace(item.Find(".rating-title").First().Text()))
		note, ok := parseNote(item.Find(".stareval-note").First().Text())
		if !ok {
			return
		}
		switch {
		case strings.Contains(title, "presse") && s.Press == nil:
			s.Press = &note
		case strings.Contains(title, "spectateur") && s.Spectators == nil:
			s.Spectators = &note
		}
	})

	if s.Press == nil && s.Spectators == nil {
		return nil, ErrNoRatings
	}
	return &s, nil
}

// parseNote reads French decimals like "3,9".
func parseNote(text string) (float64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if text == "" || text == "--" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 || v > 5 {
		return 0, false
	}
	return v, true
}
