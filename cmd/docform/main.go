package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docform",
		Short:         "Render, edit and submit ERP documents driven by server metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			asJSON, _ := cmd.Flags().GetBool("log-json")
			l, err := logger.New(level, asJSON)
			if err != nil {
				return err
			}
			logger.Set(l)
			return nil
		},
	}
	root.PersistentFlags().String("server", "", "ERP server base URL")
	root.PersistentFlags().String("api-key", "", "API key")
	root.PersistentFlags().String("api-secret", "", "API secret")
	root.PersistentFlags().String("user", "", "Acting user id")
	root.PersistentFlags().String("profile", "", "Profile name in config (overrides active)")
	root.PersistentFlags().String("fixtures", "", "Serve doctypes and documents from a YAML fixture directory instead of a server")
	root.PersistentFlags().String("settings", "", "Engine settings YAML file")
	root.PersistentFlags().String("output", "table", "Output format (table|json)")
	root.PersistentFlags().String("log-level", "warn", "Log level (debug|info|warn|error)")
	root.PersistentFlags().Bool("log-json", false, "Log in JSON")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newNewCmd())
	root.AddCommand(newEditCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newWatchCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
