package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage docform configuration"}
	cmd.AddCommand(newConfigUseCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	return cmd
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Set active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			prof := args[0]
			if _, ok := cfg.Profiles[prof]; !ok {
				return fmt.Errorf("profile %q not found", prof)
			}
			cfg.Active = prof
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %q\n", prof)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Profiles))
			for name := range cfg.Profiles {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mark := " "
				if name == cfg.Active {
					mark = "*"
				}
				p := cfg.Profiles[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\n", mark, name, p.ServerURL, p.User)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p := cfg.Profiles[cfg.Active]
			b, _ := json.MarshalIndent(struct {
				Active    string   `json:"active"`
				ServerURL string   `json:"serverUrl"`
				User      string   `json:"user"`
				Roles     []string `json:"roles"`
				Company   string   `json:"company"`
				HasKey    bool     `json:"hasKey"`
			}{cfg.Active, p.ServerURL, p.User, p.Roles, p.Company, p.APIKey != "" && p.APISecret != ""}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
