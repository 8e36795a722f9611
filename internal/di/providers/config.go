// Package providers contains dependency injection providers for the QoC server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/ripqoc/qoc-server/internal/config"
	"github.com/ripqoc/qoc-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting QoC Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"mode", cfg.QoC.Mode,
		"download_dir", cfg.QoC.DownloadDir,
		"dls", cfg.QoC.EnableDLS,
	)

	return log, nil
}
