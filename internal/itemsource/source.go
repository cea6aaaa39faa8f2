// Package itemsource picks the items a carousel shows.
package itemsource

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/emby"
)

// Defaults for the candidate query.
const (
	DefaultLimit          = 10
	DefaultCandidateLimit = 50
)

// Host is the part of the host API the source needs; *emby.Client
// implements it.
type Host interface {
	CurrentUserID(ctx context.Context) (string, error)
	GetItems(ctx context.Context, userID string, q emby.ItemsQuery) ([]domain.MediaItem, error)
	GetItem(ctx context.Context, userID, id string) (*domain.MediaItem, error)
	LookupByProviderID(ctx context.Context, userID, ref string) ([]domain.MediaItem, error)
	GetChildren(ctx context.Context, userID, parentID string) ([]domain.MediaItem, error)
}

// Options configures a Source.
type Options struct {
	Limit          int
	CandidateLimit int
	UnwatchedOnly  bool
	AllowList      *AllowList
	Logger         *slog.Logger
}

// Source selects carousel items from the host.
type Source struct {
	host           Host
	limit          int
	candidateLimit int
	unwatchedOnly  bool
	allow          *AllowList
	logger         *slog.Logger
}

// New creates a source.
func New(host Host, opts Options) *Source {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.CandidateLimit < opts.Limit {
		opts.CandidateLimit = max(DefaultCandidateLimit, opts.Limit)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		host:           host,
		limit:          opts.Limit,
		candidateLimit: opts.CandidateLimit,
		unwatchedOnly:  opts.UnwatchedOnly,
		allow:          opts.AllowList,
		logger:         opts.Logger,
	}
}

// SelectItems returns up to the configured limit of shuffled, distinct
// items. Host failures yield an empty list.
func (s *Source) SelectItems(ctx context.Context) []domain.MediaItem {
	userID, err := s.host.CurrentUserID(ctx)
	if err != nil {
		s.logger.Warn("resolve user failed", "error", err)
		return []domain.MediaItem{}
	}

	var items []domain.MediaItem
	if ids := s.allow.IDs(); len(ids) > 0 {
		items, err = s.fromAllowList(ctx, userID, ids)
	} else {
		items, err = s.host.GetItems(ctx, userID, emby.DefaultItemsQuery(s.candidateLimit, s.unwatchedOnly))
	}
	if err != nil {
		s.logger.Warn("select items failed", "error", err)
		return []domain.MediaItem{}
	}

	// The host may hand back a slice other sessions still read.
	items = slices.Clone(items)
	Shuffle(items)
	items = Dedupe(items)
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	s.logger.Debug("selected items", "count", len(items))
	return items
}

// fromAllowList resolves each id, expanding collections into their members.
// An id that cannot be resolved is skipped; only a context error aborts.
func (s *Source) fromAllowList(ctx context.Context, userID string, ids []string) ([]domain.MediaItem, error) {
	var items []domain.MediaItem
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resolved []domain.MediaItem
		if strings.HasPrefix(id, "tt") {
			found, err := s.host.LookupByProviderID(ctx, userID, "imdb."+id)
			if err != nil {
				s.logger.Debug("allow-list lookup failed", "id", id, "error", err)
				continue
			}
			resolved = found
		} else {
			item, err := s.host.GetItem(ctx, userID, id)
			if err != nil {
				s.logger.Debug("allow-list item failed", "id", id, "error", err)
				continue
			}
			resolved = []domain.MediaItem{*item}
		}

		for _, item := range resolved {
			if !item.IsCollection() {
				items = append(items, item)
				continue
			}
			children, err := s.host.GetChildren(ctx, userID, item.ID)
			if err != nil {
				s.logger.Debug("collection expand failed", "id", item.ID, "error", err)
				continue
			}
			items = append(items, children...)
		}
	}
	return items, nil
}

// Shuffle permutes s in place with an unbiased Fisher-Yates shuffle.
func Shuffle[T any](s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Dedupe drops items whose id was already seen, keeping order.
func Dedupe(items []domain.MediaItem) []domain.MediaItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
