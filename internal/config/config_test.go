package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Identity.PrimaryDomain = "co.com"
	gmail := cfg.Providers["gmail"]
	gmail.Enabled = true
	gmail.Mailboxes = []MailboxConfig{{Email: "alice@co.com", Password: "pw", Enabled: true}}
	cfg.Providers["gmail"] = gmail
	return cfg
}

// --- Validate ---

func TestValidate_DefaultsPass(t *testing.T) {
	// No provider enabled: primaryDomain not yet required.
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingPrimaryDomainFailsClosed(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.PrimaryDomain = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("enabled provider without primaryDomain must fail validation")
	}
	if !strings.Contains(err.Error(), "primaryDomain") {
		t.Fatalf("error should name the field: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.WindowDays = 0
	cfg.Sync.ConcurrencyLimit = 0
	cfg.Storage.DBPath = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"windowDays", "concurrencyLimit", "dbPath"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_GraphProviderNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.PrimaryDomain = "co.com"
	o365 := cfg.Providers["office365"]
	o365.Enabled = true
	cfg.Providers["office365"] = o365
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "accessToken") {
		t.Fatalf("expected accessToken error, got %v", err)
	}
}

func TestValidate_UnknownProviderRejected(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.PrimaryDomain = "co.com"
	cfg.Providers["slack"] = ProviderConfig{Enabled: true}
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

// --- Load / env expansion ---

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, validConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Identity.PrimaryDomain != "co.com" {
		t.Fatalf("round trip lost data: %+v", cfg.Identity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("SW_TEST_TOKEN", "sekrit")
	defer os.Unsetenv("SW_TEST_TOKEN")

	tests := []struct {
		in, want string
	}{
		{"${SW_TEST_TOKEN}", "sekrit"},
		{"${SW_TEST_UNSET:-fallback}", "fallback"},
		{"${SW_TEST_UNSET}", "${SW_TEST_UNSET}"}, // unset, no default: kept
		{"prefix-${SW_TEST_TOKEN}-suffix", "prefix-sekrit-suffix"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	os.Setenv("SW_GRAPH_TOKEN", "tok-123")
	defer os.Unsetenv("SW_GRAPH_TOKEN")

	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
	  "identity": {"primaryDomain": "co.com"},
	  "providers": {"office365": {"enabled": true, "accessToken": "${SW_GRAPH_TOKEN}"}}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["office365"].AccessToken != "tok-123" {
		t.Fatalf("env not expanded: %q", cfg.Providers["office365"].AccessToken)
	}
}

// --- Accessors ---

func TestGetByPath(t *testing.T) {
	cfg := validConfig()
	val, err := GetByPath(cfg, "sync.concurrencyLimit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := val.(float64); !ok || n != 3 {
		t.Fatalf("expected 3, got %v", val)
	}
}

func TestGetByPath_Missing(t *testing.T) {
	if _, err := GetByPath(validConfig(), "sync.nope"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestSetByPath_CoercesTypes(t *testing.T) {
	cfg := validConfig()
	if err := SetByPath(cfg, "sync.concurrencyLimit", "8"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Sync.ConcurrencyLimit != 8 {
		t.Fatalf("expected 8, got %d", cfg.Sync.ConcurrencyLimit)
	}
	if err := SetByPath(cfg, "sync.includeOutbound", "false"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if cfg.Sync.IncludeOutbound {
		t.Fatal("expected false")
	}
}

func TestSanitize_MasksCredentials(t *testing.T) {
	cfg := validConfig()
	o365 := cfg.Providers["office365"]
	o365.AccessToken = "very-long-secret-token"
	cfg.Providers["office365"] = o365

	out := Sanitize(cfg)
	if out.Providers["office365"].AccessToken == "very-long-secret-token" {
		t.Fatal("token not masked")
	}
	if out.Providers["gmail"].Mailboxes[0].Password != "***" {
		t.Fatal("mailbox password not masked")
	}
	// Original untouched.
	if cfg.Providers["gmail"].Mailboxes[0].Password != "pw" {
		t.Fatal("sanitize must not mutate the original")
	}
}
