package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faciam-dev/docform/pkg/config"
	"github.com/faciam-dev/docform/pkg/util"
	"github.com/faciam-dev/docform/sdk/client"
)

func newLoginCmd() *cobra.Command {
	var (
		nonInteractive bool
		roles          string
		company        string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save server URL and API key pair into ~/.docform/config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Root().PersistentFlags()
			prof, _ := flags.GetString("profile")
			if prof == "" {
				prof = "default"
			}
			cur := cfg.Profiles[prof]

			url, _ := flags.GetString("server")
			key, _ := flags.GetString("api-key")
			secret, _ := flags.GetString("api-secret")
			if !nonInteractive {
				in := bufio.NewReader(cmd.InOrStdin())
				out := cmd.OutOrStdout()
				if url == "" {
					url = prompt(in, out, "Server URL", cur.ServerURL)
				}
				if key == "" {
					key = prompt(in, out, "API key", cur.APIKey)
				}
				if secret == "" {
					secret = promptSecret(out, "API secret")
				}
			}
			if url == "" || key == "" || secret == "" {
				return fmt.Errorf("server, api-key and api-secret are required (provide flags or use interactive mode)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			user, err := client.Ping(ctx, url, client.WithToken(key, secret))
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			cur.Name = prof
			cur.ServerURL = url
			cur.APIKey = key
			cur.APISecret = secret
			cur.User = user
			if roles != "" {
				cur.Roles = util.SplitList(roles)
			}
			if company != "" {
				cur.Company = company
			}
			cfg.Profiles[prof] = cur
			cfg.Active = prof

			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. Active profile: %s\n", user, prof)
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting")
	cmd.Flags().StringVar(&roles, "roles", "", "Comma separated roles of the user, used for permission checks")
	cmd.Flags().StringVar(&company, "company", "", "Default company for new documents")
	return cmd
}

func prompt(in *bufio.Reader, out io.Writer, label, def string) string {
	fmt.Fprintf(out, "%s [%s]: ", label, def)
	s, err := in.ReadString('\n')
	if err != nil && s == "" {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func promptSecret(out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	if !term.IsTerminal(int(syscall.Stdin)) {
		s, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		return strings.TrimSpace(s)
	}
	b, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	return strings.TrimSpace(string(b))
}
