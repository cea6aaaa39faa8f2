// Package emby is a small client for the Emby REST API covering what the
// carousel needs: item queries, provider-id lookups, and image and stream URLs.
package emby

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const (
	authHeader   = "X-Emby-Token"
	imageQuality = "90"
)

// Config holds connection settings.
type Config struct {
	BaseURL  string
	APIKey   string
	UserID   string // optional
	ServerID string // optional
}

// Client talks to one Emby server.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger

	mu       sync.Mutex
	userID   string
	serverID string
}

// New creates a host API client.
func New(cfg Config, hc *httpx.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		http:     hc,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		logger:   logger,
		userID:   cfg.UserID,
		serverID: cfg.ServerID,
	}
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    u,
		Header: http.Header{
			"Accept":   {"application/json"},
			authHeader: {c.apiKey},
		},
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetItems runs an items query for user.
func (c *Client) GetItems(ctx context.Context, userID string, q ItemsQuery) ([]domain.MediaItem, error) {
	var resp rawItemsResponse
	if err := c.get(ctx, "/Users/"+url.PathEscape(userID)+"/Items", q.Values(), &resp); err != nil {
		return nil, wrapError("getItems", userID, err)
	}
	items := toDomainItems(resp.Items)
	c.logger.Debug("fetched items", "user_id", userID, "count", len(items))
	return items, nil
}

// GetItem fetches one item with the carousel fields.
func (c *Client) GetItem(ctx context.Context, userID, id string) (*domain.MediaItem, error) {
	// The Ids filter returns the same field set as a list query, which the
	// single-item endpoint does not honour for every server version.
	items, err := c.GetItems(ctx, userID, ItemsQuery{IDs: []string{id}, Fields: DefaultFields})
	if err != nil {
		return nil, wrapError("getItem", id, err)
	}
	if len(items) == 0 {
		return nil, wrapError("getItem", id, ErrNotFound)
	}
	return &items[0], nil
}

// LookupByProviderID finds items whose provider ids contain ref, written as
// "imdb.tt0133093".
func (c *Client) LookupByProviderID(ctx context.Context, userID, ref string) ([]domain.MediaItem, error) {
	q := ItemsQuery{
		IncludeItemTypes:    []string{string(domain.ItemMovie), string(domain.ItemSeries), string(domain.ItemBoxSet)},
		Recursive:           true,
		Fields:              DefaultFields,
		AnyProviderIDEquals: ref,
	}
	items, err := c.GetItems(ctx, userID, q)
	if err != nil {
		return nil, wrapError("lookup", ref, err)
	}
	return items, nil
}

// GetChildren lists the members of a collection.
func (c *Client) GetChildren(ctx context.Context, userID, parentID string) ([]domain.MediaItem, error) {
	q := ItemsQuery{
		IncludeItemTypes: []string{string(domain.ItemMovie), string(domain.ItemSeries)},
		Recursive:        true,
		Fields:           DefaultFields,
		ParentID:         parentID,
	}
	items, err := c.GetItems(ctx, userID, q)
	if err != nil {
		return nil, wrapError("children", parentID, err)
	}
	return items, nil
}

// LocalTrailers lists the local trailer items of an item.
func (c *Client) LocalTrailers(ctx context.Context, userID, itemID string) ([]domain.MediaItem, error) {
	var raw []rawItem
	path := "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(itemID) + "/LocalTrailers"
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, wrapError("localTrailers", itemID, err)
	}
	return toDomainItems(raw), nil
}

// CurrentUserID returns the configured user, else the first enabled
// administrator. The result is cached.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.userID != "" {
		id := c.userID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var users []rawUser
	if err := c.get(ctx, "/Users", nil, &users); err != nil {
		return "", wrapError("users", "", err)
	}
	for _, u := range users {
		if u.Policy.IsAdministrator && !u.Policy.IsDisabled && u.ID != "" {
			c.mu.Lock()
			c.userID = u.ID
			c.mu.Unlock()
			c.logger.Info("resolved emby user", "user_id", u.ID, "name", u.Name)
			return u.ID, nil
		}
	}
	return "", wrapError("users", "", ErrNoUser)
}

// ServerID returns the configured server id, else the one the server reports.
// The result is cached.
func (c *Client) ServerID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.serverID != "" {
		id := c.serverID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var info rawSystemInfo
	if err := c.get(ctx, "/System/Info/Public", nil, &info); err != nil {
		return "", wrapError("systemInfo", "", err)
	}
	c.mu.Lock()
	c.serverID = info.ID
	c.mu.Unlock()
	return info.ID, nil
}

// ImageURL builds an image URL. Image endpoints need no token.
func (c *Client) ImageURL(itemID string, opts ImageOptions) string {
	if opts.Type == "" {
		opts.Type = "Primary"
	}
	q := url.Values{}
	if opts.MaxWidth > 0 {
		q.Set("maxWidth", strconv.Itoa(opts.MaxWidth))
	}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	q.Set("quality", imageQuality)
	return c.baseURL + "/Items/" + url.PathEscape(itemID) + "/Images/" + opts.Type + "?" + q.Encode()
}

// StreamURL builds a static stream URL for a video item. The browser
// appends its own access token, so the server key never leaves the server.
func (c *Client) StreamURL(itemID string) string {
	return c.baseURL + "/Videos/" + url.PathEscape(itemID) + "/stream?Static=true"
}
