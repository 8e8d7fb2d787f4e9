package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"context"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// graphClient is a thin Microsoft Graph REST client shared by the
// office365 and teams providers. Token acquisition is external: the
// client carries whatever bearer token configuration supplied.
type graphClient struct {
	baseURL    string
	token      string
	provider   domain.Provider
	httpClient *http.Client
	logger     *slog.Logger
}

func newGraphClient(baseURL, token string, provider domain.Provider, logger *slog.Logger) *graphClient {
	return &graphClient{
		baseURL:    baseURL,
		token:      token,
		provider:   provider,
		httpClient: sharedHTTPClient(0),
		logger:     logger,
	}
}

// graphList is the generic Graph collection envelope. Items stay raw so
// the normalizer owns payload interpretation.
type graphList struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// getJSON fetches url and decodes the response into out. 401/403 map to
// domain.AuthError so the orchestrator can abort the run.
func (g *graphClient) getJSON(ctx context.Context, url string, out any) error {
	resp, err := doWithRetry(ctx, g.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, g.logger)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.AuthError{
			Provider: g.provider,
			Err:      fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph request %s: HTTP %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// idPeek extracts just the id field from a raw Graph item.
type idPeek struct {
	ID string `json:"id"`
}

func peekID(raw json.RawMessage) string {
	var p idPeek
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.ID
}
