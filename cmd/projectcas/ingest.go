package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/upload"
)

func newIngestCmd() *cobra.Command {
	var (
		uploadID    int64
		incremental bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "ingest <archive.zip>",
		Short: "Store an archive as an upload and register its projects",
		Long: `Ingest stores every file of the archive in the object store, records the
upload manifest and registers the detected projects. With --incremental,
projects whose names match registered ones are extended instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if uploadID <= 0 {
				return fmt.Errorf("--upload-id must be a positive integer")
			}

			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			zipPath := args[0]
			if !incremental {
				result, err := service.Upload(zipPath, uploadID)
				if err != nil {
					return err
				}
				log.Info().Int64("upload_id", uploadID).Int("files", len(result.Manifest.Files)).Msg("Upload stored")
				if format == formatJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				renderProjects(cmd.OutOrStdout(), result.Projects)
				return nil
			}

			result, err := ingestIncremental(service, zipPath, uploadID)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			for name, projectID := range result.Matched {
				fmt.Fprintf(cmd.OutOrStdout(), "matched %s -> project %d\n", name, projectID)
			}
			if len(result.Unmatched) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "unmatched:")
				renderDetected(cmd.OutOrStdout(), result.Unmatched)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&uploadID, "upload-id", 0, "upload session id (required)")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "attach projects to registered ones by name")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("upload-id")

	return cmd
}

func ingestIncremental(service *upload.Service, zipPath string, uploadID int64) (*upload.IncrementalResult, error) {
	names, err := archive.Names(zipPath)
	if err != nil {
		return nil, err
	}

	detected, _ := service.Discover(names)
	projectNames := make([]string, 0, len(detected))
	for _, d := range detected {
		projectNames = append(projectNames, d.Name)
	}

	existing, err := service.FindMatchingProjects(projectNames)
	if err != nil {
		return nil, err
	}
	return service.IncrementalUploadZip(zipPath, uploadID, existing)
}
