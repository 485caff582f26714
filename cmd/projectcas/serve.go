package main

import (
	"github.com/spf13/cobra"

	"projectcas/pkg/log"
	"projectcas/pkg/server"
)

func newServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, closeService, err := openService()
			if err != nil {
				return err
			}
			defer closeService()

			addr := cfg.Server.ListenAddr
			if cmd.Flags().Changed("listen") {
				addr = listenAddr
			}

			srv := server.NewServer(server.Options{
				StorageDir:     cfg.Storage.Root,
				ScratchDir:     cfg.Storage.ScratchDir,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				Version:        version(),
			}, service)

			if err := srv.Start(addr); err != nil {
				log.Error().Err(err).Msg("Server stopped with error")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides server.listen_addr)")
	return cmd
}
