package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-alloy/internal/app"
	"go-alloy/pkg/config"
	"go-alloy/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "alloy",
	Short: "Cultural due diligence research for M&A deals",
	Long: `Alloy researches an acquirer and a target company, compares the cultural
tastes of their audiences and writes a due diligence report.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(researchCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// wire loads configuration and builds the shared dependencies.
func wire(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// progress goes to stdout as json lines, so logs stay on stderr
	if err := logger.NewGlobal(cfg.App.LogLevel, cfg.App.LogPretty); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return app.New(ctx, cfg)
}
