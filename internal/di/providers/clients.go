package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	"github.com/spotlightapp/spotlight-server/internal/httpx"
	"github.com/spotlightapp/spotlight-server/internal/logger"
	"github.com/spotlightapp/spotlight-server/internal/ratings/allocine"
	"github.com/spotlightapp/spotlight-server/internal/ratings/anilist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/kinopoisk"
	"github.com/spotlightapp/spotlight-server/internal/ratings/mdblist"
	"github.com/spotlightapp/spotlight-server/internal/ratings/rottentomatoes"
	"github.com/spotlightapp/spotlight-server/internal/sponsorblock"
	"github.com/spotlightapp/spotlight-server/internal/wikidata"
)

// hostRequestsPerSecond bounds calls to the Emby server, which is local.
const hostRequestsPerSecond = 20

// HTTPClientsHandle holds the outbound clients. The host gets its own so
// provider throttling never delays the first paint.
type HTTPClientsHandle struct {
	Host      *httpx.Client
	Providers *httpx.Client
}

// Shutdown implements do.Shutdownable.
func (h *HTTPClientsHandle) Shutdown() error {
	h.Host.Close()
	h.Providers.Close()
	return nil
}

// ProvideHTTPClients provides the rate limited outbound HTTP clients.
func ProvideHTTPClients(i do.Injector) (*HTTPClientsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &HTTPClientsHandle{
		Host: httpx.New(httpx.Options{
			Timeout:           cfg.Ratings.RequestTimeout,
			RequestsPerSecond: hostRequestsPerSecond,
			Burst:             hostRequestsPerSecond,
		}, log.Component("emby")),
		Providers: httpx.New(httpx.Options{
			Timeout:           cfg.Ratings.RequestTimeout,
			RequestsPerSecond: cfg.Ratings.RequestsPerSecond,
			Burst:             max(1, int(cfg.Ratings.RequestsPerSecond)),
			RetryDelay:        500 * time.Millisecond,
		}, log.Component("providers")),
	}, nil
}

// ProvideEmbyClient provides the host API client.
func ProvideEmbyClient(i do.Injector) (*emby.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clients := do.MustInvoke[*HTTPClientsHandle](i)

	return emby.New(emby.Config{
		BaseURL:  cfg.Emby.BaseURL,
		APIKey:   cfg.Emby.APIKey,
		UserID:   cfg.Emby.UserID,
		ServerID: cfg.Emby.ServerID,
	}, clients.Host, log.Component("emby")), nil
}

// ProvideProviders provides the ratings and awards collaborators.
func ProvideProviders(i do.Injector) (enrichment.Providers, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hc := do.MustInvoke[*HTTPClientsHandle](i).Providers
	proxy := httpx.NewProxy(cfg.Ratings.ProxyURL)

	providers := enrichment.Providers{
		Aggregator: mdblist.New(hc, cfg.Ratings.MDBListAPIKey, "", log.Component("mdblist")),
		CrossRef:   wikidata.New(hc, "", log.Component("wikidata")),
		Scraper:    rottentomatoes.New(hc, proxy, "", log.Component("rottentomatoes")),
		Anime:      anilist.New(hc, "", log.Component("anilist")),
		Kinopoisk:  kinopoisk.New(hc, cfg.Ratings.KinopoiskAPIKey, "", log.Component("kinopoisk")),
		Allocine:   allocine.New(hc, proxy, "", log.Component("allocine")),
	}

	log.Info("Ratings providers configured",
		"mdblist", cfg.Ratings.MDBList && cfg.Ratings.MDBListAPIKey != "",
		"kinopoisk", cfg.Ratings.Kinopoisk && cfg.Ratings.KinopoiskAPIKey != "",
		"scrape_proxy", proxy.Enabled(),
	)

	return providers, nil
}

// ProvideSponsorBlock provides the segment lookup client.
func ProvideSponsorBlock(i do.Injector) (*sponsorblock.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	hc := do.MustInvoke[*HTTPClientsHandle](i).Providers
	return sponsorblock.New(hc, "", log.Component("sponsorblock")), nil
}
