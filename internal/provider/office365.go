package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// Office365Client syncs mailbox messages through the Microsoft Graph API.
type Office365Client struct {
	graph  *graphClient
	logger *slog.Logger
}

// Office365Config configures an Office365Client.
type Office365Config struct {
	GraphBaseURL string
	AccessToken  string
	Logger       *slog.Logger
}

// NewOffice365 creates a client for one Graph tenant.
func NewOffice365(cfg Office365Config) *Office365Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.GraphBaseURL
	if base == "" {
		base = "https://graph.microsoft.com/v1.0"
	}
	return &Office365Client{
		graph:  newGraphClient(base, cfg.AccessToken, domain.ProviderOffice365, logger),
		logger: logger,
	}
}

func (c *Office365Client) Name() domain.Provider { return domain.ProviderOffice365 }

// Folders returns the mail folders to sync. Direction policy hangs off
// these names, so they must line up with sync.outboundFolders.
func (c *Office365Client) Folders(includeOutbound bool) []string {
	if includeOutbound {
		return []string{"inbox", "sentitems"}
	}
	return []string{"inbox"}
}

// graphUser is the subset of a Graph user the enumeration consumes.
type graphUser struct {
	ID             string `json:"id"`
	Mail           string `json:"mail"`
	DisplayName    string `json:"displayName"`
	AccountEnabled bool   `json:"accountEnabled"`
}

// ListPrincipals enumerates tenant users with a mailbox, following
// @odata.nextLink until the collection is exhausted.
func (c *Office365Client) ListPrincipals(ctx context.Context) ([]domain.Principal, error) {
	next := fmt.Sprintf("%s/users?$select=id,mail,displayName,accountEnabled&$top=100", c.graph.baseURL)

	var principals []domain.Principal
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var page struct {
			Value    []graphUser `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := c.graph.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range page.Value {
			if u.Mail == "" {
				continue // unlicensed accounts have no mailbox
			}
			principals = append(principals, domain.Principal{
				ID:           u.ID,
				PrimaryEmail: u.Mail,
				DisplayName:  u.DisplayName,
				Enabled:      u.AccountEnabled,
			})
		}
		next = page.NextLink
	}

	c.logger.Debug("office365 principals enumerated", "count", len(principals))
	return principals, nil
}

// FetchActivity returns one page of mailbox messages for the principal.
// The cursor is the @odata.nextLink of the previous page.
func (c *Office365Client) FetchActivity(ctx context.Context, p domain.Principal, q domain.ActivityQuery) (domain.ActivityPage, error) {
	reqURL := q.Cursor
	if reqURL == "" {
		filter := url.QueryEscape(fmt.Sprintf("sentDateTime ge %s", q.Since.UTC().Format(time.RFC3339)))
		reqURL = fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?$filter=%s&$top=%d&$orderby=%s",
			c.graph.baseURL, url.PathEscape(p.ID), url.PathEscape(q.Folder), filter, q.PageSize,
			url.QueryEscape("sentDateTime desc"))
	}

	var page graphList
	if err := c.graph.getJSON(ctx, reqURL, &page); err != nil {
		return domain.ActivityPage{}, fmt.Errorf("fetch %s/%s: %w", p.PrimaryEmail, q.Folder, err)
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
			Format:     domain.FormatGraphMail,
			Payload:    raw,
		})
	}
	return out, nil
}
