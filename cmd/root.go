package cmd

import (
	"github.com/spf13/cobra"

	"github/itish2003/admissions/config"
	"github/itish2003/admissions/logger"
)

var version = "1.0.0"

var (
	envFile    string
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "admissions",
	Short: "Admissions assistant backed by a retrieval pipeline",
	Long: `Indexes school documents and web pages into a vector store and answers
prospective students' questions from them, capturing leads from users who
want to apply.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(envFile, configFile)
		if err != nil {
			return err
		}
		if err := logger.Init(loaded.LogLevel, loaded.LogFormat); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "admissions.toml", "optional TOML settings file")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
