package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "merge <archive.zip> <project>",
		Short: "Flatten an archive into the merge root with hash deduplication",
		Long: `Merge writes each file of the archive to <merge root>/<project>/<basename>.
Content already present anywhere under the merge root is not written again;
name collisions with different content get a short-hash suffix.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			result, err := service.Merge(args[0], args[1])
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Entry", "Stored As", "Deduplicated"})
			for _, record := range result.Files {
				location := args[1] + "/" + record.Filename
				if record.IsDeduplicated {
					location = record.ActualLocation
				}
				t.AppendRow(table.Row{record.Path, location, record.IsDeduplicated})
			}
			t.AppendFooter(table.Row{
				"",
				fmt.Sprintf("%d written, %d skipped", result.FilesWritten, result.Skipped),
				result.FilesDeduplicated,
			})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table or json")
	return cmd
}
