package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/pkg/util"
)

// ErrNoServer is returned when no server URL is configured anywhere.
var ErrNoServer = errors.New("server URL not set (flag/env/config)")

type Resolved struct {
	ServerURL string
	APIKey    string
	APISecret string
	User      string
	Roles     []string
	Company   string
	Profile   string
}

// Resolve picks every setting from the first of flag, DOCFORM_* environment
// variable and active profile that has it.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	flags := cmd.Root().PersistentFlags()
	flagURL, _ := flags.GetString("server")
	flagKey, _ := flags.GetString("api-key")
	flagSecret, _ := flags.GetString("api-secret")
	flagUser, _ := flags.GetString("user")

	cfg, err := Load()
	if err != nil {
		return Resolved{}, err
	}
	prof := cfg.Active
	if p, _ := flags.GetString("profile"); p != "" {
		prof = p
	}
	cp := cfg.Profiles[prof]

	r := Resolved{
		ServerURL: firstNonEmpty(flagURL, util.GetEnv("DOCFORM_SERVER_URL", ""), cp.ServerURL),
		APIKey:    firstNonEmpty(flagKey, util.GetEnv("DOCFORM_API_KEY", ""), cp.APIKey),
		APISecret: firstNonEmpty(flagSecret, util.GetEnv("DOCFORM_API_SECRET", ""), cp.APISecret),
		User:      firstNonEmpty(flagUser, util.GetEnv("DOCFORM_USER", ""), cp.User),
		Company:   firstNonEmpty(util.GetEnv("DOCFORM_COMPANY", ""), cp.Company),
		Roles:     cp.Roles,
		Profile:   prof,
	}
	if env := util.GetEnv("DOCFORM_ROLES", ""); env != "" {
		r.Roles = util.SplitList(env)
	}
	if r.ServerURL == "" {
		return r, ErrNoServer
	}
	return r, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
