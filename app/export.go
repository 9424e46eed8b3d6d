package app

import (
	"errors"
	"fmt"
	"marketplace-watcher/storage"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the saved listings to a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		snap, err := storage.NewJSONStore(cfg.Store.Path, logger).LoadStrict()
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no saved listings at %s", cfg.Store.Path)
		}
		if err != nil {
			return err
		}

		if err := storage.NewCSVWriter(exportOut).Write(snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d listings to %s\n", len(snap), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "listings.csv", "CSV output path")
}
