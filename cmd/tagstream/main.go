// Command tagstream parses, renders and stores tag-delimited model output.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/youssefsiam38/tagstream/registry"
)

var (
	registryPath string
	databaseURL  string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "tagstream",
	Short: "Incremental parser for tag-delimited LLM output",
	Long: `Tagstream splits model output into text and tool-use blocks as it
streams. The parse and render commands work on transcript files; migrate,
prune and serve manage a PostgreSQL message store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "YAML tool catalogue (default: built-in tools)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRegistry returns the catalogue named by --registry, or the built-in one.
func loadRegistry() (*registry.Registry, error) {
	if registryPath == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadFile(registryPath)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return reg, nil
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
