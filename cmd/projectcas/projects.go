package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"projectcas/pkg/log"
)

func parseProjectID(arg string) (int64, error) {
	projectID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || projectID <= 0 {
		return 0, fmt.Errorf("invalid project id %q", arg)
	}
	return projectID, nil
}

func newProjectsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			projects, err := service.ListProjects()
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), projects)
			}
			renderProjects(cmd.OutOrStdout(), projects)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table or json")
	return cmd
}

func newMaterializeCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "materialize <project-id>",
		Short: "Reconstruct a project from all of its uploads",
		Long: `Materialize writes the merged view of every upload attached to the project
into a directory. Files from later uploads replace earlier ones. Without
--dest a fresh directory is created under the scratch dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}

			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			destRoot := dest
			if destRoot == "" {
				if err := os.MkdirAll(cfg.Storage.ScratchDir, storageDirPerm); err != nil {
					return fmt.Errorf("failed to create scratch directory: %w", err)
				}
				destRoot, err = os.MkdirTemp(cfg.Storage.ScratchDir, fmt.Sprintf("project-%d-*", projectID))
				if err != nil {
					return fmt.Errorf("failed to create materialization directory: %w", err)
				}
			}

			projectDir, err := service.MaterializeProject(projectID, destRoot)
			if err != nil {
				return err
			}
			log.Info().Int64("project_id", projectID).Str("path", projectDir).Msg("Project materialized")
			fmt.Fprintln(cmd.OutOrStdout(), projectDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "destination root directory")
	return cmd
}

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <project-id>",
		Short: "Print the content fingerprint and unique file count of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}

			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			fingerprint, fileCount, err := service.ProjectFingerprint(projectID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d files\n", fingerprint, fileCount)
			return nil
		},
	}
}
