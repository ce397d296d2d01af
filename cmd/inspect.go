package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/diorama-project/diorama/internal/archive"
	"github.com/diorama-project/diorama/internal/manifest"
	"github.com/diorama-project/diorama/internal/staging"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [archive.zip]",
	Short: "Print the index manifest of a scene archive without reconstructing payloads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := staging.Create(cfg.StagingRoot, nil)
		if err != nil {
			return err
		}
		defer area.Cleanup()

		codec := archive.NewCodec(cfg.CompressionLevel, nil)
		result, err := codec.Unpack(args[0], area.Path())
		if err != nil {
			return err
		}

		doc, err := manifest.Read(area.FS(), manifest.Filename)
		if err != nil {
			return err
		}

		summary := map[string]any{
			"version": doc.Version,
			"writer":  doc.Writer,
			"nodes":   make([]map[string]any, 0, len(doc.Nodes)),
		}
		nodes := summary["nodes"].([]map[string]any)
		for _, record := range doc.Nodes {
			entry := map[string]any{"uid": record.UID, "name": record.Name}
			if record.Data != nil {
				entry["type"] = record.Data.Type
				entry["file"] = record.Data.File
			}
			if len(record.Sources) > 0 {
				sources := make([]string, 0, len(record.Sources))
				for _, s := range record.Sources {
					sources = append(sources, s.UID)
				}
				entry["sources"] = sources
			}
			if len(record.Properties) > 0 {
				entry["property_lists"] = len(record.Properties)
			}
			nodes = append(nodes, entry)
		}
		summary["nodes"] = nodes
		if len(result.Failures) > 0 {
			summary["unpack_failures"] = len(result.Failures)
		}

		fmt.Println(oj.JSON(summary, 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
