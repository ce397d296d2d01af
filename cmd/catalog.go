package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diorama-project/diorama/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List scene archives recorded in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.CatalogPath == "" {
			return fmt.Errorf("no catalog configured (set catalog in %s)", cfgPath)
		}
		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close() }()

		entries, err := cat.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\tnodes=%d\tfailed=%d\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Archive, e.NodeCount, e.FailedNodes, e.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
