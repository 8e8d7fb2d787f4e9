// Package config loads, validates, and persists SecureWatch
// configuration. The file is JSON with ${VAR} / ${VAR:-default}
// environment expansion so credentials can stay out of the file itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Sync      SyncConfig                `json:"sync"`
	Identity  IdentityConfig            `json:"identity"`
	Risk      RiskConfig                `json:"risk"`
	Storage   StorageConfig             `json:"storage"`
	Dispatch  DispatchConfig            `json:"dispatch"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

// ProviderConfig configures one collaboration provider connection.
// Graph-based providers (office365, teams) use the Graph fields; gmail
// uses the IMAP fields.
type ProviderConfig struct {
	Enabled bool `json:"enabled"`

	// Microsoft Graph (office365, teams)
	GraphBaseURL string `json:"graphBaseUrl,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`

	// IMAP (gmail)
	IMAPServer string          `json:"imapServer,omitempty"`
	Mailboxes  []MailboxConfig `json:"mailboxes,omitempty"`

	// Per-provider overrides; zero falls back to the sync section.
	ConcurrencyLimit int `json:"concurrencyLimit,omitempty"`
	TeamsPerBatch    int `json:"teamsPerBatch,omitempty"`
}

// MailboxConfig is one monitored IMAP account.
type MailboxConfig struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password"`
	Enabled     bool   `json:"enabled"`
}

type SyncConfig struct {
	WindowDays           int      `json:"windowDays"`
	MaxItemsPerPrincipal int      `json:"maxItemsPerPrincipal"`
	PageSize             int      `json:"pageSize"`
	ConcurrencyLimit     int      `json:"concurrencyLimit"`
	PacingDelayMs        int      `json:"pacingDelayMs"`
	IncludeOutbound      bool     `json:"includeOutbound"`
	OutboundFolders      []string `json:"outboundFolders"`
	MaxErrors            int      `json:"maxErrors"`
}

// IdentityConfig configures identity reconciliation. PrimaryDomain is
// required before any sync can run: an unset domain fails closed instead
// of silently defaulting.
type IdentityConfig struct {
	PrimaryDomain string `json:"primaryDomain"`
}

type RiskConfig struct {
	RulesDir string `json:"rulesDir,omitempty"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

type DispatchConfig struct {
	QueueSize int    `json:"queueSize"`
	Reason    string `json:"reason"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// DefaultConfigDir returns the default config directory (~/.securewatch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".securewatch"
	}
	return filepath.Join(home, ".securewatch")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands, and validates the config file at path.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)
	cfg.Risk.RulesDir = ExpandPath(cfg.Risk.RulesDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes the config as indented JSON, creating the directory if
// needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the config, collecting every problem into one error.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Sync.WindowDays < 1 || cfg.Sync.WindowDays > 365 {
		errs = append(errs, "sync.windowDays must be between 1 and 365")
	}
	if cfg.Sync.MaxItemsPerPrincipal < 1 {
		errs = append(errs, "sync.maxItemsPerPrincipal must be >= 1")
	}
	if cfg.Sync.PageSize < 1 || cfg.Sync.PageSize > 1000 {
		errs = append(errs, "sync.pageSize must be between 1 and 1000")
	}
	if cfg.Sync.ConcurrencyLimit < 1 || cfg.Sync.ConcurrencyLimit > 64 {
		errs = append(errs, "sync.concurrencyLimit must be between 1 and 64")
	}
	if cfg.Sync.PacingDelayMs < 0 {
		errs = append(errs, "sync.pacingDelayMs must be >= 0")
	}
	if cfg.Sync.MaxErrors < 1 {
		errs = append(errs, "sync.maxErrors must be >= 1")
	}
	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required")
	}
	if cfg.Dispatch.QueueSize < 1 {
		errs = append(errs, "dispatch.queueSize must be >= 1")
	}

	anyEnabled := false
	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		anyEnabled = true
		switch name {
		case "gmail":
			if pc.IMAPServer == "" {
				errs = append(errs, "providers.gmail: imapServer is required")
			}
			if len(pc.Mailboxes) == 0 {
				errs = append(errs, "providers.gmail: at least one mailbox is required")
			}
		case "office365", "teams":
			if pc.AccessToken == "" {
				errs = append(errs, fmt.Sprintf("providers.%s: accessToken is required", name))
			}
		default:
			errs = append(errs, fmt.Sprintf("providers.%s: unknown provider", name))
		}
	}

	// Identity linkage depends on a known organizational domain; an
	// empty value must fail here, before a run starts, not default
	// silently at reconcile time.
	if anyEnabled && cfg.Identity.PrimaryDomain == "" {
		errs = append(errs, "identity.primaryDomain is required when any provider is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
