package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index documents into the knowledge base",
	Long: `Extracts text from .txt, .md, .html and .pdf files and indexes it,
replacing any earlier version of the same source. Files outside the watch
directory are keyed by their absolute path. Without arguments the watch
directory is scanned instead.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if len(args) == 0 {
			report, err := a.files.ScanAndIndexDirectory(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Indexed %d, unchanged %d, removed %d, failed %d\n",
				report.Indexed, report.Unchanged, report.Removed, report.Failed)
			return nil
		}

		var failed int
		for _, path := range args {
			result, err := a.files.IngestFile(cmd.Context(), path)
			if err != nil {
				failed++
				cmd.PrintErrf("  %s: %v\n", path, err)
				continue
			}
			cmd.Printf("  %s: %d chunks\n", result.SourceID, result.Chunks)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	})
}
