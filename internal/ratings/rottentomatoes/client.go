// Package rottentomatoes scrapes Tomatometer and Popcornmeter scores from
// Rotten Tomatoes title pages through the configured scrape proxy.
package rottentomatoes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultBaseURL = "https://www.rottentomatoes.com/"

var slugPattern = regexp.MustCompile(`^(m|tv)/[a-z0-9_\-]+$`)

// Sentinel errors.
var (
	ErrDisabled    = errors.New("rottentomatoes: no proxy configured")
	ErrInvalidSlug = errors.New("rottentomatoes: invalid slug")
	ErrNoScores    = errors.New("rottentomatoes: page has no scorecard")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op   string // "scores", "certification"
	Slug string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rottentomatoes %s [%s]: %v", e.Op, e.Slug, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client fetches title pages.
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
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, proxy: proxy, baseURL: baseURL, logger: logger}
}

// Enabled reports whether pages can be fetched.
func (c *Client) Enabled() bool {
	return c != nil && c.proxy.Enabled()
}

// NormalizeSlug trims and lower-cases a Wikidata P1258 value into a page path.
func NormalizeSlug(slug string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(slug)), "/")
}

// PageURL returns the public page for slug.
func (c *Client) PageURL(slug string) string {
	return defaultBaseURL + NormalizeSlug(slug)
}

// Scores fetches and parses the scorecard for slug ("m/the_matrix").
func (c *Client) Scores(ctx context.Context, slug string) (*Scores, error) {
	return c.fetch(ctx, "scores", slug)
}

// Certification returns only the certified-fresh and verified-hot flags.
func (c *Client) Certification(ctx context.Context, slug string) (Certification, error) {
	s, err := c.fetch(ctx, "certification", slug)
	if err != nil {
		return Certification{}, err
	}
	return Certification{CertifiedFresh: s.CertifiedFresh, VerifiedHot: s.VerifiedHot}, nil
}

func (c *Client) fetch(ctx context.Context, op, slug string) (*Scores, error) {
	slug = NormalizeSlug(slug)
	if !c.Enabled() {
		return nil, &Error{Op: op, Slug: slug, Err: ErrDisabled}
	}
	if !slugPattern.MatchString(slug) {
		return nil, &Error{Op: op, Slug: slug, Err: ErrInvalidSlug}
	}

	body, err := c.http.Get(ctx, c.proxy.Wrap(c.baseURL+slug), "text/html")
	if err != nil {
		return nil, &Error{Op: op, Slug: slug, Err: err}
	}

	scores, err := Parse(body)
	if err != nil {
		return nil, &Error{Op: op, Slug: slug, Err: err}
	}
	c.logger.Debug("rotten tomatoes scorecard", "slug", slug,
		"critics", scores.CriticsScore, "audience", scores.AudienceScore,
		"certified", scores.CertifiedFresh, "verified_hot", scores.VerifiedHot)
	return scores, nil
}
