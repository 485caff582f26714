package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"projectcas/pkg/archive"
	"projectcas/pkg/discovery"
)

func newDiscoverCmd() *cobra.Command {
	var (
		showTree bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "discover <archive.zip>",
		Short: "List the projects contained in an archive without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := archive.Names(args[0])
			if err != nil {
				return err
			}

			detected := discovery.DiscoverProjects(names, cfg.Discovery.Ignore)
			tree := discovery.BuildTree(names, cfg.Discovery.Ignore)

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"projects": detected,
					"tree":     tree.Root,
				})
			}

			renderDetected(cmd.OutOrStdout(), detected)
			if showTree {
				fmt.Fprintln(cmd.OutOrStdout(), tree.Render(filepath.Base(args[0])))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTree, "tree", false, "also print the filtered archive tree")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format: table or json")
	return cmd
}
