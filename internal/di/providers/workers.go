package providers

import (
	"github.com/samber/do/v2"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/itemsource"
	"github.com/spotlightapp/spotlight-server/internal/logger"
	"github.com/spotlightapp/spotlight-server/internal/watcher"
)

// AllowListHandle wraps the allow-list and its file watcher.
type AllowListHandle struct {
	*itemsource.AllowList
}

// Shutdown implements do.Shutdownable.
func (h *AllowListHandle) Shutdown() error {
	return h.Close()
}

// ProvideAllowList loads the allow-list file and reloads it on change.
func ProvideAllowList(i do.Injector) (*AllowListHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	list, err := itemsource.LoadAllowList(cfg.Spotlight.AllowListPath, log.Component("allowlist"))
	if err != nil {
		return nil, err
	}

	if err := list.Watch(watcher.Options{}); err != nil {
		// The list still works as loaded; edits need a restart.
		log.Warn("Failed to watch allow-list file", "path", cfg.Spotlight.AllowListPath, "error", err)
	}

	return &AllowListHandle{AllowList: list}, nil
}

// ProvideOverrides loads the certified fresh and verified hot overrides.
func ProvideOverrides(i do.Injector) (badge.Overrides, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	overrides, err := badge.LoadOverrides(cfg.Spotlight.OverridesPath)
	if err != nil {
		return badge.Overrides{}, err
	}
	if cfg.Spotlight.OverridesPath != "" {
		log.Info("Badge overrides loaded", "path", cfg.Spotlight.OverridesPath)
	}
	return overrides, nil
}
