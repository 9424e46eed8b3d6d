package app

import (
	"marketplace-watcher/server"
	"marketplace-watcher/storage"
	"net/http"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the saved listings and the purge endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		store := storage.NewJSONStore(cfg.Store.Path, logger)
		prober := server.NewProber(&http.Client{}, cfg.Server.ProbeWorkers, cfg.Server.ProbeTimeout, logger)
		handlers := server.NewHandlers(store, prober, cfg.Server.PurgeFailureThreshold)

		return server.NewServer(cfg.Server.Port, handlers, logger).Run(cmd.Context())
	},
}
