// Package sponsorblock fetches community skip segments for YouTube trailers.
package sponsorblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultBaseURL = "https://sponsor.ajay.app"

// DefaultCategories are skipped when none are configured.
var DefaultCategories = []string{"sponsor", "intro", "outro", "selfpromo", "interaction"}

// Error wraps an underlying error with operation context.
type Error struct {
	VideoID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sponsorblock segments [%s]: %v", e.VideoID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type rawSegment struct {
	Category   string    `json:"category"`
	ActionType string    `json:"actionType"`
	Segment    []float64 `json:"segment"`
}

// Client is a SponsorBlock API client.
type Client struct {
	http    *httpx.Client
	baseURL string
	logger  *slog.Logger
}

// New creates a client. baseURL may be empty for the public instance.
func New(hc *httpx.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Segments returns the skip segments for videoID. A video without segments
// yields an empty slice and no error.
func (c *Client) Segments(ctx context.Context, videoID string, categories []string) ([]domain.SkipSegment, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	cats, err := json.Marshal(categories)
	if err != nil {
		return nil, &Error{VideoID: videoID, Err: err}
	}

	q := url.Values{"videoID": {videoID}, "categories": {string(cats)}}
	body, err := c.http.Get(ctx, c.baseURL+"/api/skipSegments?"+q.Encode(), "application/json")
	if errors.Is(err, httpx.ErrNotFound) {
		return []domain.SkipSegment{}, nil
	}
	if err != nil {
		return nil, &Error{VideoID: videoID, Err: err}
	}

	var raw []rawSegment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &Error{VideoID: videoID, Err: fmt.Errorf("decode response: %w", err)}
	}

	segments := make([]domain.SkipSegment, 0, len(raw))
	for _, r := range raw {
		if len(r.Segment) != 2 || r.Segment[1] <= r.Segment[0] {
			continue
		}
		if r.ActionType != "" && r.ActionType != "skip" {
			continue
		}
		segments = append(segments, domain.SkipSegment{Category: r.Category, Start: r.Segment[0], End: r.Segment[1]})
	}
	c.logger.Debug("sponsorblock segments", "video_id", videoID, "count", len(segments))
	return segments, nil
}
