package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wingmanhq/wingman/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize wingman configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose a provider, model and default preferences, and writes a .wingman.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
