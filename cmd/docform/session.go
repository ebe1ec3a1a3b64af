package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docform/internal/fixtures"
	"github.com/faciam-dev/docform/internal/logger"
	"github.com/faciam-dev/docform/pkg/config"
	"github.com/faciam-dev/docform/pkg/schema"
	"github.com/faciam-dev/docform/pkg/util"
	"github.com/faciam-dev/docform/sdk"
	"github.com/faciam-dev/docform/sdk/client"
)

// session is the transport and form configuration one command works with.
type session struct {
	client   client.Client
	settings config.Settings
	identity schema.Identity
}

func newSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	settingsPath, _ := flags.GetString("settings")
	st, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	if dir, _ := flags.GetString("fixtures"); dir != "" {
		mem, err := fixtures.Memory(dir)
		if err != nil {
			return nil, fmt.Errorf("fixtures: %w", err)
		}
		user, _ := flags.GetString("user")
		id := schema.Identity{
			ID:      util.GetEnv("DOCFORM_USER", user),
			Roles:   util.SplitList(util.GetEnv("DOCFORM_ROLES", "")),
			Company: util.GetEnv("DOCFORM_COMPANY", ""),
		}
		if user != "" {
			id.ID = user
		}
		return &session{client: mem, settings: st, identity: id}, nil
	}

	r, err := config.Resolve(cmd)
	if err != nil {
		return nil, err
	}
	c := client.NewHTTP(r.ServerURL, client.WithToken(r.APIKey, r.APISecret), client.WithTimeout(st.Timeout))
	return &session{
		client:   c,
		settings: st,
		identity: schema.Identity{ID: r.User, Roles: r.Roles, Company: r.Company},
	}, nil
}

func (s *session) formConfig() sdk.FormConfig {
	sink := func(e *sdk.ConditionError) {
		logger.L.Infow("depends_on rule failed, field hidden", "field", e.Field, "expr", e.Expr, "error", e.Err)
	}
	return sdk.FormConfig{
		Transport:        s.client,
		Companies:        s.client,
		Identity:         s.identity,
		Logger:           logger.L,
		PermissionMode:   s.settings.Permissions,
		HiddenFields:     s.settings.HiddenFields,
		HideUnlabeled:    s.settings.HideUnlabeled,
		RowDefaults:      s.settings.RowDefaults,
		DefaultCompany:   s.settings.DefaultCompany,
		SchemaWorkers:    s.settings.SchemaWorkers,
		CacheSize:        s.settings.CacheSize,
		OnConditionError: sink,
	}
}

func (s *session) form() (*sdk.Form, error) {
	return sdk.NewForm(s.formConfig())
}
