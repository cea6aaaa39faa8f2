package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"
	"golang.org/x/sync/singleflight"

	"github.com/spotlightapp/spotlight-server/internal/cache"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/logger"
)

// cleanupTimeout bounds the startup sweep of expired entries.
const cleanupTimeout = time.Minute

// CacheHandle wraps the persistent ratings cache with shutdown capability.
type CacheHandle struct {
	*cache.Persistent
	backend *cache.BadgerBackend
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.backend.Close()
}

// ProvideCache opens the persistent ratings cache and sweeps stale entries.
// An empty path keeps the cache in memory for the life of the process.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheLog := log.Component("cache")

	backend, err := cache.OpenBadger(cache.BadgerOptions{
		Path:       cfg.Cache.Path,
		QuotaBytes: cfg.Cache.QuotaBytes,
		InMemory:   cfg.Cache.Path == "",
	}, cacheLog)
	if err != nil {
		return nil, err
	}

	persistent := cache.NewPersistent(backend, cfg.Cache.TTL(), cacheLog)

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	stats, err := persistent.Cleanup(ctx)
	if err != nil {
		log.Warn("Ratings cache cleanup failed", "error", err)
	} else if stats.Removed() > 0 {
		log.Info("Removed stale ratings cache entries", "count", stats.Removed(), "bytes", persistent.Usage())
	}

	return &CacheHandle{Persistent: persistent, backend: backend}, nil
}

// ProvideFlight provides the request group that collapses concurrent
// lookups of the same key across sessions.
func ProvideFlight(i do.Injector) (*singleflight.Group, error) {
	return &singleflight.Group{}, nil
}
