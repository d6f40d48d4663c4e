package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wingmanhq/wingman/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wingman",
	Short: "Reply suggestions for dating and social conversations",
	Long: `Wingman coaches you through a conversation. Share what was said (as
text or a screenshot), answer a few quick questions, and get reply
suggestions grounded in annotated example conversations and coaching
principles.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.FileName, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
