package video

import (
	"context"
	"fmt"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// TrailerResolver finds the playable URL of an item's local trailer.
type TrailerResolver interface {
	ResolveTrailer(ctx context.Context, itemID string) (string, error)
}

// TrailerHost is the part of the host API local trailers need.
type TrailerHost interface {
	LocalTrailers(ctx context.Context, userID, itemID string) ([]domain.MediaItem, error)
	StreamURL(itemID string) string
}

// HostTrailers resolves local trailers through the host API.
type HostTrailers struct {
	Host   TrailerHost
	UserID string
}

// ResolveTrailer returns the stream URL of the item's first local trailer.
func (h HostTrailers) ResolveTrailer(ctx context.Context, itemID string) (string, error) {
	trailers, err := h.Host.LocalTrailers(ctx, h.UserID, itemID)
	if err != nil {
		return "", err
	}
	for _, t := range trailers {
		if t.ID != "" {
			return h.Host.StreamURL(t.ID), nil
		}
	}
	return "", fmt.Errorf("item %s: no local trailer", itemID)
}
