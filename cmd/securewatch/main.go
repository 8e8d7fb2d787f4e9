package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ronyzarom/SecureWatch-sub001/internal/config"
	"github.com/ronyzarom/SecureWatch-sub001/internal/dispatch"
	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
	"github.com/ronyzarom/SecureWatch-sub001/internal/identity"
	"github.com/ronyzarom/SecureWatch-sub001/internal/metrics"
	"github.com/ronyzarom/SecureWatch-sub001/internal/normalize"
	"github.com/ronyzarom/SecureWatch-sub001/internal/provider"
	"github.com/ronyzarom/SecureWatch-sub001/internal/risk"
	"github.com/ronyzarom/SecureWatch-sub001/internal/store"
	"github.com/ronyzarom/SecureWatch-sub001/internal/syncer"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "securewatch",
		Short: "SecureWatch: multi-source communication sync and risk review",
		Long:  "SecureWatch syncs mailbox and channel activity from gmail, office365, and teams, scores it against risk rules, and queues flagged employees for review.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.securewatch/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(probeCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(queueCmd())
	root.AddCommand(configCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			logger.Info("next: enable a provider and set identity.primaryDomain, then run 'securewatch probe'")
			return nil
		},
	}
}

// pipeline holds everything one sync run needs, plus the resources to
// release when it is done.
type pipeline struct {
	cfg     *config.Config
	store   *store.Store
	disp    *dispatch.Dispatcher
	factory *provider.Factory
}

func buildPipeline() (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &pipeline{
		cfg:     cfg,
		store:   st,
		disp:    dispatch.New(st, cfg.Dispatch.QueueSize, logger),
		factory: provider.NewFactory(cfg, logger),
	}, nil
}

func (p *pipeline) Close() {
	p.disp.Close()
	p.store.Close()
}

// syncerFor assembles the full pipeline for one provider.
func (p *pipeline) syncerFor(name string) (*syncer.Syncer, error) {
	client, err := p.factory.Get(name)
	if err != nil {
		return nil, err
	}
	pc := p.cfg.Providers[name]

	rules, err := risk.LoadRulesDirectory(p.cfg.Risk.RulesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load risk rules: %w", err)
	}

	concurrency := p.cfg.Sync.ConcurrencyLimit
	if pc.ConcurrencyLimit > 0 {
		concurrency = pc.ConcurrencyLimit
	}

	return syncer.New(syncer.Options{
		Client:     client,
		Normalizer: normalize.New(p.cfg.Sync.OutboundFolders, logger),
		Resolver:   identity.NewResolver(p.store, logger),
		Analyzer:   risk.NewAnalyzer(rules, logger),
		Store:      p.store,
		Dispatcher: p.disp,
		Reconciler: identity.NewReconciler(p.store, p.cfg.Identity.PrimaryDomain, logger),

		WindowDays:           p.cfg.Sync.WindowDays,
		PageSize:             p.cfg.Sync.PageSize,
		MaxItemsPerPrincipal: p.cfg.Sync.MaxItemsPerPrincipal,
		ConcurrencyLimit:     concurrency,
		PacingDelay:          time.Duration(p.cfg.Sync.PacingDelayMs) * time.Millisecond,
		IncludeOutbound:      p.cfg.Sync.IncludeOutbound,
		MaxErrors:            p.cfg.Sync.MaxErrors,
		DispatchReason:       p.cfg.Dispatch.Reason,

		Logger: logger,
	})
}

func syncCmd() *cobra.Command {
	var providerName string
	var all bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass over enabled providers",
		Long: `Enumerates principals, reconciles the employee roster, and syncs the
activity window into the local store. With --interval the command keeps
running and repeats the pass until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerName == "" && !all {
				all = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			if p.cfg.Metrics.Enabled {
				startMetricsServer(p.cfg.Metrics.Listen)
			}

			run := func() error {
				names := []string{providerName}
				if all {
					names = p.factory.Enabled()
					if len(names) == 0 {
						return fmt.Errorf("no providers enabled; edit %s", resolveConfigPath())
					}
				}
				for _, name := range names {
					if err := runProvider(ctx, p, name); err != nil {
						return err
					}
				}
				return nil
			}

			if interval <= 0 {
				return run()
			}

			for {
				if err := run(); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					// A failed pass does not kill the loop; credentials
					// and networks recover between intervals.
					logger.Error("sync pass failed", "err", err)
				}
				logger.Info("next pass scheduled", "interval", interval)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "sync a single provider (gmail, office365, teams)")
	cmd.Flags().BoolVar(&all, "all", false, "sync every enabled provider (default when --provider is unset)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the sync pass on this interval (e.g. 15m)")
	return cmd
}

func runProvider(ctx context.Context, p *pipeline, name string) error {
	s, err := p.syncerFor(name)
	if err != nil {
		return err
	}
	summary, err := s.RunSync(ctx)
	printSummary(summary)
	if err != nil {
		return fmt.Errorf("sync %s: %w", name, err)
	}
	return nil
}

func printSummary(s *syncer.RunSummary) {
	if s == nil {
		return
	}
	fmt.Printf("%s: principals=%d synced=%d fetched=%d persisted=%d created=%d skipped=%d flagged=%d dispatched=%d (%s)\n",
		s.Provider, s.Principals, s.Synced, s.ItemsFetched, s.ItemsPersisted,
		s.ItemsCreated, s.ItemsSkipped, s.Flagged, s.Dispatched,
		s.Duration().Round(time.Millisecond))
	errs, truncated := s.Errors()
	for _, e := range errs {
		fmt.Printf("  error %s\n", e)
	}
	if truncated > 0 {
		fmt.Printf("  (%d more errors not shown)\n", truncated)
	}
}

func startMetricsServer(listen string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metrics.Collector.Handler())
	go func() {
		logger.Info("metrics listening", "addr", listen)
		if err := http.ListenAndServe(listen, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [provider]",
		Short: "Verify provider credentials and enumeration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			names := p.factory.Enabled()
			if len(args) == 1 {
				names = args[:1]
			}
			if len(names) == 0 {
				return fmt.Errorf("no providers enabled")
			}

			failed := 0
			for _, name := range names {
				s, err := p.syncerFor(name)
				if err != nil {
					fmt.Printf("%-10s FAIL  %v\n", name, err)
					failed++
					continue
				}
				res := s.TestConnection(ctx)
				if res.Success {
					fmt.Printf("%-10s OK    %s\n", name, res.Detail)
				} else {
					fmt.Printf("%-10s FAIL  %s\n", name, res.Detail)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d provider(s) failed the probe", failed)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store contents and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			fmt.Printf("securewatch %s\n", version)
			fmt.Printf("config:  %s\n", resolveConfigPath())
			fmt.Printf("db:      %s\n", p.cfg.Storage.DBPath)
			fmt.Printf("domain:  %s\n", p.cfg.Identity.PrimaryDomain)

			employees, err := p.store.CountEmployees(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("employees: %d\n", employees)

			total := 0
			for _, prov := range domain.KnownProviders {
				n, err := p.store.CountMessages(ctx, prov)
				if err != nil {
					return err
				}
				total += n
				enabled := ""
				if pc, ok := p.cfg.Providers[string(prov)]; ok && pc.Enabled {
					enabled = " (enabled)"
				}
				fmt.Printf("  %-10s %d messages%s\n", prov, n, enabled)
			}
			flagged, err := p.store.CountFlagged(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("messages:  %d total, %d flagged\n", total, flagged)

			pending, err := p.store.PendingReviews(ctx, 1_000_000)
			if err != nil {
				return err
			}
			fmt.Printf("review queue: %d pending\n", len(pending))
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List pending review queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			entries, err := p.store.PendingReviews(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("review queue is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-36s  %-24s  %s\n",
					e.CreatedAt.Format(time.RFC3339), e.EmployeeID, e.Reason, e.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. sync.windowDays)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. sync.windowDays 14)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
