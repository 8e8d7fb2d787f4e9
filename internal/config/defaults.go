package config

// Defaults returns a config with safe defaults. Providers are disabled
// until configured; identity.primaryDomain is deliberately left empty so
// validation forces an explicit choice.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Providers: map[string]ProviderConfig{
			"gmail": {
				Enabled:    false,
				IMAPServer: "imap.gmail.com:993",
			},
			"office365": {
				Enabled:      false,
				GraphBaseURL: "https://graph.microsoft.com/v1.0",
			},
			"teams": {
				Enabled:       false,
				GraphBaseURL:  "https://graph.microsoft.com/v1.0",
				TeamsPerBatch: 2,
			},
		},
		Sync: SyncConfig{
			WindowDays:           7,
			MaxItemsPerPrincipal: 500,
			PageSize:             50,
			ConcurrencyLimit:     3,
			PacingDelayMs:        1000,
			IncludeOutbound:      true,
			OutboundFolders:      []string{"sent", "sentitems", "[Gmail]/Sent Mail"},
			MaxErrors:            50,
		},
		Identity: IdentityConfig{
			PrimaryDomain: "",
		},
		Risk: RiskConfig{
			RulesDir: "",
		},
		Storage: StorageConfig{
			DBPath: "~/.securewatch/securewatch.db",
		},
		Dispatch: DispatchConfig{
			QueueSize: 200,
			Reason:    "flagged-communication",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9321",
		},
	}
}
