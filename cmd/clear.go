package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every source from the knowledge base",
	Long: `Empties the vector collection and the source catalog. Files in the watch
directory are indexed again by the next scan.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			return errors.New("refusing to clear the knowledge base without --yes")
		}
		return withApp(cmd.Context(), func(a *app) error {
			if err := a.kb.Clear(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Knowledge base cleared.")
			return nil
		})
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "confirm clearing")
	rootCmd.AddCommand(clearCmd)
}
