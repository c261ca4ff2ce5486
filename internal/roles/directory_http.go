package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	pstrings "gradlink/pkg/platform/strings"
)

const directoryTimeout = 5 * time.Second

// HTTPDirectory fetches the partner domain list from the partner-management
// API. The endpoint returns either a bare JSON array of domains or an object
// with a "domains" field; both shapes are accepted.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: directoryTimeout},
	}
}

func (d *HTTPDirectory) PartnerDomains(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/domains", nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch partner domains: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("partner directory returned %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode partner domains: %w", err)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return normalizeDomains(list), nil
	}

	var wrapped struct {
		Domains []string `json:"domains"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected partner directory payload: %w", err)
	}
	return normalizeDomains(wrapped.Domains), nil
}

func normalizeDomains(in []string) []string {
	return pstrings.DedupeAndTrimLower(in)
}
