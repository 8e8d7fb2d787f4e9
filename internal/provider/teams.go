package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
	"github.com/ronyzarom/SecureWatch-sub001/internal/schedule"
)

// TeamsClient syncs channel messages through the Microsoft Graph API.
// Principals are channels: enumeration walks the team/channel hierarchy
// with its own concurrency bound, since team enumeration is itself
// rate-limited.
type TeamsClient struct {
	graph         *graphClient
	teamsPerBatch int
	logger        *slog.Logger
}

// TeamsConfig configures a TeamsClient.
type TeamsConfig struct {
	GraphBaseURL  string
	AccessToken   string
	TeamsPerBatch int
	Logger        *slog.Logger
}

// NewTeams creates a client for one Graph tenant.
func NewTeams(cfg TeamsConfig) *TeamsClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.GraphBaseURL
	if base == "" {
		base = "https://graph.microsoft.com/v1.0"
	}
	perBatch := cfg.TeamsPerBatch
	if perBatch <= 0 {
		perBatch = 2
	}
	return &TeamsClient{
		graph:         newGraphClient(base, cfg.AccessToken, domain.ProviderTeams, logger),
		teamsPerBatch: perBatch,
		logger:        logger,
	}
}

func (c *TeamsClient) Name() domain.Provider { return domain.ProviderTeams }

// Folders returns the single pseudo-folder channels are fetched from.
// Channel messages have no outbound counterpart.
func (c *TeamsClient) Folders(includeOutbound bool) []string {
	return []string{"channel"}
}

type graphTeam struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type graphChannel struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// ListPrincipals enumerates every channel of every team. One principal
// per channel; its id packs team and channel so FetchActivity can
// address the messages collection.
func (c *TeamsClient) ListPrincipals(ctx context.Context) ([]domain.Principal, error) {
	teams, err := c.listTeams(ctx)
	if err != nil {
		return nil, err
	}

	b := schedule.Batcher{Limit: c.teamsPerBatch, Logger: c.logger}
	results, err := schedule.Run(ctx, b, teams, func(ctx context.Context, t graphTeam) ([]domain.Principal, error) {
		return c.listChannels(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	var principals []domain.Principal
	for _, r := range results {
		if r.Err != nil {
			// Channel listing for one team failing must not hide every
			// other team, but an auth failure is terminal either way.
			if domain.IsAuth(r.Err) {
				return nil, r.Err
			}
			c.logger.Warn("cannot list channels for team", "err", r.Err)
			continue
		}
		principals = append(principals, r.Value...)
	}
	return principals, nil
}

func (c *TeamsClient) listTeams(ctx context.Context) ([]graphTeam, error) {
	next := fmt.Sprintf("%s/teams?$select=id,displayName&$top=50", c.graph.baseURL)
	var teams []graphTeam
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var page struct {
			Value    []graphTeam `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := c.graph.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}
		teams = append(teams, page.Value...)
		next = page.NextLink
	}
	return teams, nil
}

func (c *TeamsClient) listChannels(ctx context.Context, t graphTeam) ([]domain.Principal, error) {
	var page struct {
		Value []graphChannel `json:"value"`
	}
	reqURL := fmt.Sprintf("%s/teams/%s/channels", c.graph.baseURL, url.PathEscape(t.ID))
	if err := c.graph.getJSON(ctx, reqURL, &page); err != nil {
		return nil, fmt.Errorf("list channels for %s: %w", t.DisplayName, err)
	}

	principals := make([]domain.Principal, 0, len(page.Value))
	for _, ch := range page.Value {
		principals = append(principals, domain.Principal{
			ID:           channelPrincipalID(t.ID, ch.ID),
			PrimaryEmail: ch.Email, // often empty; channels are email-less principals
			DisplayName:  t.DisplayName + "/" + ch.DisplayName,
			Enabled:      true,
		})
	}
	return principals, nil
}

// channelPrincipalID packs a team and channel id into one principal id.
func channelPrincipalID(teamID, channelID string) string {
	return teamID + ":" + channelID
}

func splitChannelPrincipalID(id string) (teamID, channelID string, err error) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed channel principal id %q", id)
	}
	return parts[0], parts[1], nil
}

// FetchActivity returns one page of channel messages. Graph does not
// filter channel messages server-side by date, so the window bound is
// applied by the caller via the normalized timestamp; the page cursor is
// the @odata.nextLink.
func (c *TeamsClient) FetchActivity(ctx context.Context, p domain.Principal, q domain.ActivityQuery) (domain.ActivityPage, error) {
	teamID, channelID, err := splitChannelPrincipalID(p.ID)
	if err != nil {
		return domain.ActivityPage{}, err
	}

	reqURL := q.Cursor
	if reqURL == "" {
		reqURL = fmt.Sprintf("%s/teams/%s/channels/%s/messages?$top=%d",
			c.graph.baseURL, url.PathEscape(teamID), url.PathEscape(channelID), q.PageSize)
	}

	var page graphList
	if err := c.graph.getJSON(ctx, reqURL, &page); err != nil {
		return domain.ActivityPage{}, fmt.Errorf("fetch channel %s: %w", p.DisplayName, err)
	}

	out := domain.ActivityPage{NextCursor: page.NextLink}
	for _, raw := range page.Value {
		id := peekID(raw)
		if id == "" {
			continue
		}
		out.Items = append(out.Items, domain.RawItem{
			ProviderID: id,
			Folder:     q.Folder,
			Format:     domain.FormatGraphChat,
			Payload:    raw,
		})
	}
	return out, nil
}
