package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ronyzarom/SecureWatch-sub001/internal/config"
	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// Factory builds and caches provider clients from configuration.
// Clients are cheap but not free (gmail carries a credential roster),
// so each named provider is constructed once.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]domain.ProviderClient
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]domain.ProviderClient),
	}
}

// Get returns the client for the named provider, constructing it on
// first use. Disabled and unknown providers are errors.
func (f *Factory) Get(name string) (domain.ProviderClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cl, ok := f.clients[name]; ok {
		return cl, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %q is disabled", name)
	}

	cl, err := f.build(name, pc)
	if err != nil {
		return nil, err
	}
	f.clients[name] = cl
	return cl, nil
}

// Enabled returns the names of all enabled providers in stable order.
func (f *Factory) Enabled() []string {
	var names []string
	for _, name := range []string{"gmail", "office365", "teams"} {
		if pc, ok := f.cfg.Providers[name]; ok && pc.Enabled {
			names = append(names, name)
		}
	}
	return names
}

func (f *Factory) build(name string, pc config.ProviderConfig) (domain.ProviderClient, error) {
	logger := f.logger.With("provider", name)
	switch name {
	case "gmail":
		return NewGmail(GmailConfig{
			IMAPServer: pc.IMAPServer,
			Mailboxes:  pc.Mailboxes,
			Logger:     logger,
		}), nil
	case "office365":
		return NewOffice365(Office365Config{
			GraphBaseURL: pc.GraphBaseURL,
			AccessToken:  pc.AccessToken,
			Logger:       logger,
		}), nil
	case "teams":
		return NewTeams(TeamsConfig{
			GraphBaseURL:  pc.GraphBaseURL,
			AccessToken:   pc.AccessToken,
			TeamsPerBatch: pc.TeamsPerBatch,
			Logger:        logger,
		}), nil
	default:
		return nil, fmt.Errorf("no client implementation for provider %q", name)
	}
}
