// Package cli implements the docqa command line: ingest local files and ask
// questions against them using the same pipelines as the HTTP API.
package cli

import (
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"docqa-backend/internal/bootstrap"
	"docqa-backend/internal/shared/config"
)

const defaultCLIUser = "cli:local"

var (
	userID string

	appOnce    sync.Once
	appErr     error
	app        *bootstrap.App
	newAppFunc = func() (*bootstrap.App, error) {
		return bootstrap.Build(config.Load())
	}
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Ingest documents and ask questions about them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultCLIUser, "user the documents and questions belong to")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadApp() (*bootstrap.App, error) {
	appOnce.Do(func() {
		app, appErr = newAppFunc()
		if appErr == nil && app == nil {
			appErr = errors.New("application not configured")
		}
	})
	return app, appErr
}
