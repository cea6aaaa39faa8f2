// Package anilist queries the AniList GraphQL API for anime scores.
package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/spotlightapp/spotlight-server/internal/httpx"
	"github.com/spotlightapp/spotlight-server/internal/normalize"
)

const defaultEndpoint = "https://graphql.anilist.co"

const mediaFields = `id averageScore meanScore popularity seasonYear startDate { year }
title { romaji english native } synonyms siteUrl`

const byIDQuery = `query ($id: Int) { Media(id: $id, type: ANIME) { ` + mediaFields + ` } }`

const searchQuery = `query ($search: String) { Page(perPage: 10) { media(search: $search, type: ANIME) { ` + mediaFields + ` } } }`

// ErrGraphQL is returned when the response carries GraphQL errors.
var ErrGraphQL = errors.New("anilist: graphql error")

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // "byID", "search"
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("anilist %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Media is one AniList entry.
type Media struct {
	ID           int    `json:"id"`
	AverageScore *int   `json:"averageScore"`
	MeanScore    *int   `json:"meanScore"`
	Popularity   int    `json:"popularity"`
	SeasonYear   int    `json:"seasonYear"`
	SiteURL      string `json:"siteUrl"`
	StartDate    struct {
		Year int `json:"year"`
	} `json:"startDate"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Synonyms []string `json:"synonyms"`
}

// Year returns the season year, falling back to the start year.
func (m *Media) Year() int {
	if m.SeasonYear > 0 {
		return m.SeasonYear
	}
	return m.StartDate.Year
}

// Score returns the average score (0..100), falling back to the mean.
func (m *Media) Score() (int, bool) {
	if m.AverageScore != nil && *m.AverageScore > 0 {
		return *m.AverageScore, true
	}
	if m.MeanScore != nil && *m.MeanScore > 0 {
		return *m.MeanScore, true
	}
	return 0, false
}

// Titles returns every title variant.
func (m *Media) Titles() []string {
	titles := []string{m.Title.Romaji, m.Title.English, m.Title.Native}
	return append(titles, m.Synonyms...)
}

// URL returns the AniList page.
func (m *Media) URL() string {
	if m.SiteURL != "" {
		return m.SiteURL
	}
	return "https://anilist.co/anime/" + strconv.Itoa(m.ID)
}

// Client is an AniList GraphQL client.
type Client struct {
	http     *httpx.Client
	endpoint string
	logger   *slog.Logger
}

// New creates a client. endpoint may be empty for the public API.
func New(hc *httpx.Client, endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, endpoint: endpoint, logger: logger}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		Media *Media `json:"Media"`
		Page  struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

func (c *Client) post(ctx context.Context, query string, vars map[string]any) (*graphQLResponse, error) {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}

	body, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Header: http.Header{
			"Content-Type": {"application/json"},
			"Accept":       {"application/json"},
		},
		Body: payload,
	})
	if err != nil {
		return nil, err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		if resp.Errors[0].Status == http.StatusNotFound {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, resp.Errors[0].Message)
	}
	return &resp, nil
}

// ByID fetches one anime by AniList id.
func (c *Client) ByID(ctx context.Context, id int) (*Media, error) {
	key := strconv.Itoa(id)
	resp, err := c.post(ctx, byIDQuery, map[string]any{"id": id})
	if err != nil {
		return nil, &Error{Op: "byID", Key: key, Err: err}
	}
	if resp.Data.Media == nil {
		return nil, &Error{Op: "byID", Key: key, Err: httpx.ErrNotFound}
	}
	return resp.Data.Media, nil
}

// Search returns up to ten anime matching title.
func (c *Client) Search(ctx context.Context, title string) ([]Media, error) {
	resp, err := c.post(ctx, searchQuery, map[string]any{"search": title})
	if err != nil {
		return nil, &Error{Op: "search", Key: title, Err: err}
	}
	c.logger.Debug("anilist search", "title", title, "results", len(resp.Data.Page.Media))
	return resp.Data.Page.Media, nil
}

// BestMatch returns the first result whose year equals year exactly and one
// of whose title variants matches one of titles after normalization.
func BestMatch(results []Media, year int, titles ...string) (*Media, bool) {
	if year <= 0 {
		return nil, false
	}
	for i := range results {
		m := &results[i]
		if m.Year() != year {
			continue
		}
		for _, t := range titles {
			if normalize.TitlesMatch(t, m.Titles()...) {
				return m, true
			}
		}
	}
	return nil, false
}
