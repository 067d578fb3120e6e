package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List indexed sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete [source-id]",
	Short: "Remove a source from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesDelete,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output sources as JSON")
	sourcesCmd.AddCommand(sourcesDeleteCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		records, err := a.kb.Sources(cmd.Context())
		if err != nil {
			return err
		}

		if sourcesJSON {
			for i := range records {
				records[i].RawText = ""
			}
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal sources: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		if len(records) == 0 {
			cmd.Println("No sources indexed.")
			return nil
		}
		for _, rec := range records {
			cmd.Printf("  %-7s %4d chunks  %s  %s\n", rec.Origin, rec.ChunkCount, rec.IngestedAt.Format("2006-01-02 15:04"), rec.SourceID)
		}
		cmd.Printf("%d sources\n", len(records))
		return nil
	})
}

func runSourcesDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if _, err := a.kb.Source(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := a.kb.DeleteSource(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Deleted %s\n", args[0])
		return nil
	})
}
