package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"projectcas/pkg/config"
	"projectcas/pkg/log"
	"projectcas/pkg/registry"
	"projectcas/pkg/upload"
)

const storageDirPerm = 0o750

var (
	// Global flags
	cfgFile  string
	logLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "projectcas",
	Short: "Content-addressed project storage",
	Long: `projectcas ingests zip archives into a content-addressed object store,
detects the projects they contain and reconstructs each project across
upload sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := loaded.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		if err := log.SetLevel(level); err != nil {
			return err
		}

		cfg = loaded
		log.Debug().
			Str("config", cfgFile).
			Str("storage_root", cfg.Storage.Root).
			Str("merge_root", cfg.Merge.TargetRoot).
			Msg("Configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults under $"+config.DirEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newMaterializeCmd())
	rootCmd.AddCommand(newFingerprintCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// openService opens the registry and wires the upload service over the
// configured storage root. The returned close func releases the registry.
func openService() (*upload.Service, func(), error) {
	if err := os.MkdirAll(cfg.Storage.Root, storageDirPerm); err != nil {
		return nil, nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	projects, err := registry.NewStore(cfg.RegistryPath())
	if err != nil {
		return nil, nil, err
	}

	service := upload.NewService(upload.Options{
		StorageDir:     cfg.Storage.Root,
		MergeRoot:      cfg.Merge.TargetRoot,
		IgnorePatterns: cfg.Discovery.Ignore,
	}, projects)

	closeFn := func() {
		if err := projects.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close registry")
		}
	}
	return service, closeFn, nil
}
