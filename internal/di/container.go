// Package di provides dependency injection configuration for the Spotlight server.
package di

import (
	"github.com/samber/do/v2"
	"golang.org/x/sync/singleflight"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/di/providers"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	"github.com/spotlightapp/spotlight-server/internal/logger"
	"github.com/spotlightapp/spotlight-server/internal/sponsorblock"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSSEManager)

	// Outbound clients
	do.Provide(injector, providers.ProvideHTTPClients)
	do.Provide(injector, providers.ProvideEmbyClient)
	do.Provide(injector, providers.ProvideProviders)
	do.Provide(injector, providers.ProvideSponsorBlock)

	// Storage layer
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideFlight)

	// Item selection and badges
	do.Provide(injector, providers.ProvideAllowList)
	do.Provide(injector, providers.ProvideOverrides)

	// Sessions
	do.Provide(injector, providers.ProvideSessionManager)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	_ = do.MustInvoke[*providers.HTTPClientsHandle](injector)
	_ = do.MustInvoke[*emby.Client](injector)
	_ = do.MustInvoke[enrichment.Providers](injector)
	_ = do.MustInvoke[*sponsorblock.Client](injector)

	if _, err := do.Invoke[*providers.CacheHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*singleflight.Group](injector)

	if _, err := do.Invoke[*providers.AllowListHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[badge.Overrides](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.SessionManagerHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
