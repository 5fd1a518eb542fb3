// Command marbler runs the multi-agent warehouse environment with a random
// policy and records every episode, or prints the configured layout.
package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wlsgn1217/MARBLER/internal/config"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:          "marbler",
		Short:        "Multi-agent warehouse environment for load/unload tasks",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+config.FileName)

	rootCmd.AddCommand(newRunCmd(&configDir))
	rootCmd.AddCommand(newLayoutCmd(&configDir))
	return rootCmd
}

// loadConfig reads the config file when present and falls back to defaults
// plus environment overrides otherwise.
func loadConfig(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err != nil {
		config.LoadDefaults()
		return nil
	}
	return config.Load(dir)
}
