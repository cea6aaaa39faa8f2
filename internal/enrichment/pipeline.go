// Package enrichment attaches ratings and awards to slides after they have
// been rendered. Lookups run only for slides the carousel asks for and are
// memoized per session and across sessions.
package enrichment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/fetch"
	"github.com/spotlightapp/spotlight-server/internal/ratings/allocine"
	"github.com/spotlightapp/spotlight-server/internal/ratings/anilist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/kinopoisk"
	"github.com/spotlightapp/spotlight-server/internal/ratings/mdblist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/rottentomatoes"
)

// Options configures a Pipeline.
type Options struct {
	Toggles   Toggles
	Overrides badge.Overrides
	Tiers     fetch.Tiers
	Logger    *slog.Logger
}

type memos struct {
	mdblist       *fetch.Memo[mdblist.Result]
	rtSlug        *fetch.Memo[string]
	rtScores      *fetch.Memo[rottentomatoes.Scores]
	rtCert        *fetch.Memo[rottentomatoes.Certification]
	anilistXref   *fetch.Memo[int]
	anilistMedia  *fetch.Memo[anilist.Media]
	anilistSearch *fetch.Memo[anilist.Media]
	kinopoisk     *fetch.Memo[kinopoisk.Rating]
	allocineID    *fetch.Memo[string]
	allocine      *fetch.Memo[allocine.Scores]
	awards        *fetch.Memo[domain.AwardsSummary]
}

func newMemos(t fetch.Tiers) memos {
	return memos{
		mdblist:       fetch.NewMemo[mdblist.Result]("mdblist", t),
		rtSlug:        fetch.NewMemo[string]("rt-slug", t),
		rtScores:      fetch.NewMemo[rottentomatoes.Scores]("rt", t),
		rtCert:        fetch.NewMemo[rottentomatoes.Certification]("rt-cert", t),
		anilistXref:   fetch.NewMemo[int]("anilist-xref", t),
		anilistMedia:  fetch.NewMemo[anilist.Media]("anilist", t),
		anilistSearch: fetch.NewMemo[anilist.Media]("anilist-search", t),
		kinopoisk:     fetch.NewMemo[kinopoisk.Rating]("kinopoisk", t),
		allocineID:    fetch.NewMemo[string]("allocine-id", t),
		allocine:      fetch.NewMemo[allocine.Scores]("allocine", t),
		awards:        fetch.NewMemo[domain.AwardsSummary]("awards", t),
	}
}

// Pipeline enriches the slides of one session.
type Pipeline struct {
	providers Providers
	toggles   Toggles
	overrides badge.Overrides
	patcher   Patcher
	memos     memos
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu       sync.Mutex
	enriched map[domain.SlideKey]struct{}
	closed   bool
}

// New creates a pipeline that delivers its results to patcher.
func New(providers Providers, patcher Patcher, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Tiers.Logger == nil {
		opts.Tiers.Logger = logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		providers: providers,
		toggles:   opts.Toggles,
		overrides: opts.Overrides,
		patcher:   patcher,
		memos:     newMemos(opts.Tiers),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enriched:  make(map[domain.SlideKey]struct{}),
	}
}

// EnrichSlide starts the ratings and awards lookups for the slide at
// slideIndex. It returns immediately and reports whether work was started;
// a slide already enriched is skipped. The work ends when ctx or the
// pipeline is done; a ctx that is already done starts nothing.
func (p *Pipeline) EnrichSlide(ctx context.Context, slideIndex int, item *domain.MediaItem) bool {
	if item == nil || item.ID == "" || ctx.Err() != nil {
		return false
	}
	key := domain.NewSlideKey(slideIndex, item.ID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, done := p.enriched[key]; done {
		return false
	}
	p.enriched[key] = struct{}{}

	// Spawned under the lock so Close never waits while work is being added.
	wctx, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	var flows conc.WaitGroup
	flows.Go(func() { p.isolate(key, "ratings", func() { p.ratings(wctx, key, item) }) })
	flows.Go(func() { p.isolate(key, "awards", func() { p.awards(wctx, key, item) }) })

	p.wg.Go(func() {
		flows.Wait()
		stop()
		cancel()
	})
	return true
}

// Enriched reports whether the slide was already handed to EnrichSlide.
func (p *Pipeline) Enriched(key domain.SlideKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.enriched[key]
	return ok
}

// Reset forgets which slides were enriched, e.g. after the slides were
// rebuilt. Cached lookups are kept.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	clear(p.enriched)
	p.mu.Unlock()
}

// Wait blocks until every lookup started so far has delivered its patches.
func (p *Pipeline) Wait() {
	if r := p.wg.WaitAndRecover(); r != nil {
		p.logger.Error("enrichment panicked", "panic", r.Value, "stack", string(r.Stack))
	}
}

// Close cancels in-flight work and waits for it to finish.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	if r := p.wg.WaitAndRecover(); r != nil {
		p.logger.Error("enrichment panicked", "panic", r.Value, "stack", string(r.Stack))
	}
}

// isolate runs fn and turns a panic into a log line so one provider can never
// take down the others.
func (p *Pipeline) isolate(key domain.SlideKey, what string, fn func()) {
	var pc panics.Catcher
	pc.Try(fn)
	if r := pc.Recovered(); r != nil {
		p.logger.Warn("enrichment step panicked", "slide", key, "step", what, "error", r.AsError())
	}
}

// parallel runs steps concurrently, each isolated, and waits for all.
func (p *Pipeline) parallel(key domain.SlideKey, steps map[string]func()) {
	var wg conc.WaitGroup
	for name, step := range steps {
		wg.Go(func() { p.isolate(key, name, step) })
	}
	wg.Wait()
}

func (p *Pipeline) patchRatings(ctx context.Context, key domain.SlideKey, flow string, records []domain.RatingRecord) {
	if len(records) == 0 || ctx.Err() != nil || !p.patcher.Alive(key) {
		return
	}
	p.patcher.PatchRatings(RatingsPatch{SlideKey: key, Provider: flow, Records: records})
}
