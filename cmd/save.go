package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diorama-project/diorama/internal/catalog"
	"github.com/diorama-project/diorama/internal/sceneio"
)

var saveCmd = &cobra.Command{
	Use:   "save [scene.json] [output.zip]",
	Short: "Save a scene described by a JSON scene file into an archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenePath, dest := args[0], args[1]

		storage, nodes, err := loadSceneFile(scenePath)
		if err != nil {
			return err
		}

		io := sceneio.New(
			sceneio.WithStagingRoot(cfg.StagingRoot),
			sceneio.WithCompressionLevel(cfg.CompressionLevel),
		)
		result, err := io.SaveScene(nodes, storage, dest)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %d nodes to %s\n", len(nodes)-len(result.FailedNodes), dest)
		for _, n := range result.FailedNodes {
			fmt.Printf("  failed node: %s\n", n.Name)
		}
		for _, p := range result.FailedProperties {
			fmt.Printf("  failed property: node=%s list=%s key=%s (%s)\n", p.Node, p.List, p.Key, p.Reason)
		}

		if cfg.CatalogPath != "" {
			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				return err
			}
			defer func() { _ = cat.Close() }()
			return cat.Record(&catalog.Entry{
				Archive:     dest,
				NodeCount:   len(nodes),
				FailedNodes: len(result.FailedNodes),
			})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
}
