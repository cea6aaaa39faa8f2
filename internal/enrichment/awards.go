package enrichment

import (
	"context"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/domain"
)

func (p *Pipeline) awards(ctx context.Context, key domain.SlideKey, item *domain.MediaItem) {
	imdb := item.IMDbID()
	if !p.toggles.Awards || imdb == "" || p.providers.CrossRef == nil {
		return
	}

	summary, ok := p.memos.awards.Do(ctx, "awards:"+imdb, func(ctx context.Context) (domain.AwardsSummary, bool, error) {
		s, err := p.providers.CrossRef.Awards(ctx, imdb)
		if err != nil {
			return domain.AwardsSummary{}, false, err
		}
		return s, !s.Empty(), nil
	})
	if !ok {
		return
	}

	row := badge.Row(summary)
	if row.Empty() || ctx.Err() != nil || !p.patcher.Alive(key) {
		return
	}
	p.patcher.PatchAwards(AwardsPatch{SlideKey: key, Row: row})
}
