package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	cfg := &File{
		Active: "p1",
		Profiles: map[string]Profile{
			"p1": {Name: "p1", ServerURL: "http://erp", APIKey: "key", APISecret: "secret", Roles: []string{"Sales User"}},
		},
		Version: 1,
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	p, err := Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v", info.Mode().Perm())
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("cfg diff (-want +got)\n%s", diff)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	s, err := LoadSettings(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing: %v", err)
	}
	if diff := cmp.Diff(DefaultSettings(), s); diff != "" {
		t.Fatalf("defaults diff (-want +got)\n%s", diff)
	}

	p := filepath.Join(dir, "docform.yaml")
	body := "permissions: allow-all\nhidden_fields: [naming_series]\nrow_defaults: {qty: 1}\ntimeout: 5s\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = LoadSettings(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultSettings()
	want.Permissions = "allow-all"
	want.HiddenFields = []string{"naming_series"}
	want.RowDefaults = map[string]any{"qty": 1}
	want.Timeout = 5 * time.Second
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("settings diff (-want +got)\n%s", diff)
	}

	if err := os.WriteFile(p, []byte("permissions: sometimes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSettings(p); err == nil {
		t.Fatalf("want error for unknown permissions mode")
	}
}
