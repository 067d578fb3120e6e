package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github/itish2003/admissions/services"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the reply as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		assistant, err := a.assistant(cmd.Context())
		if err != nil {
			return err
		}
		reply, err := assistant.Chat(cmd.Context(), services.ChatRequest{Message: strings.Join(args, " ")})
		if err != nil {
			return err
		}

		if askJSON {
			data, err := json.MarshalIndent(reply, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal reply: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Println(reply.Answer)
		if !reply.ContextAvailable {
			cmd.Println()
			cmd.Println("(knowledge base unavailable, answered without context)")
		}
		if len(reply.UsedSources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for _, s := range reply.UsedSources {
				cmd.Printf("  - %s\n", s)
			}
		}
		return nil
	})
}
