package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diorama-project/diorama/internal/sceneio"
)

var loadCmd = &cobra.Command{
	Use:   "load [archive.zip]",
	Short: "Load a scene archive and print the reconstructed graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		io := sceneio.New(sceneio.WithStagingRoot(cfg.StagingRoot))

		storage, result := io.LoadScene(args[0], nil, false)
		if result.Err != nil {
			return result.Err
		}

		for _, node := range storage.All() {
			typeName := "-"
			if node.Data != nil {
				typeName = node.Data.TypeName()
			}
			fmt.Printf("%s\ttype=%s\tsources=%d\tproperties=%d\n",
				node.Name, typeName, len(storage.Sources(node)), node.Properties().Len())
		}

		if len(result.UnpackFailures) > 0 {
			fmt.Printf("%d archive entries could not be extracted\n", len(result.UnpackFailures))
		}
		if len(result.FailedNodes) > 0 {
			fmt.Printf("%d nodes could not be reconstructed: %v\n", len(result.FailedNodes), result.FailedNodes)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
