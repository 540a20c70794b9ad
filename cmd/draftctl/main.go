// Command draftctl inspects and manages stored report drafts.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fieldops/field-reports/internal/config"
	"github.com/fieldops/field-reports/internal/container"
	"github.com/fieldops/field-reports/pkg/utils"
)

// opener builds a started container for one command run.
type opener func(ctx context.Context) (*container.Container, error)

func main() {
	var configPath string
	open := func(ctx context.Context) (*container.Container, error) {
		return openContainer(ctx, configPath)
	}

	root := newRootCmd(open)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openContainer(ctx context.Context, configPath string) (*container.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// command output goes to stdout, so logs stay on stderr
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		return nil, err
	}
	return app, nil
}
