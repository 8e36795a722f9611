// Package di provides dependency injection configuration for the QoC server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/ripqoc/qoc-server/internal/config"
	"github.com/ripqoc/qoc-server/internal/di/providers"
	"github.com/ripqoc/qoc-server/internal/logger"
	"github.com/ripqoc/qoc-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()
	Register(injector)
	return injector
}

// Register adds every provider to injector. Use do.OverrideValue afterwards
// to replace one, e.g. the configuration in tests.
func Register(injector do.Injector) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Pipeline
	do.Provide(injector, providers.ProvideFetchClient)
	do.Provide(injector, providers.ProvideProber)
	do.Provide(injector, providers.ProvideTranscoder)
	do.Provide(injector, providers.ProvideQoCService)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector do.Injector) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*service.QoCService](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	return nil
}
