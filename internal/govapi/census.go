package govapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const censusBaseURL = "https://api.census.gov"

// CensusClient is a client for the Census Bureau data API.
type CensusClient struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewCensus creates a Census API client. The API key is optional.
func NewCensus(apiKey, userAgent string) *CensusClient {
	return &CensusClient{
		apiKey:    apiKey,
		baseURL:   censusBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// FetchACS1 fetches ACS 1-year estimates for the given year, variable
// codes ("B05002_013E" and friends) and geography ("state:*") and returns
// the raw response body, which the API shapes as a JSON array of rows.
func (c *CensusClient) FetchACS1(ctx context.Context, year int, variables []string, geography string) ([]byte, error) {
	params := url.Values{}
	params.Set("get", strings.Join(variables, ","))
	params.Set("for", geography)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/data/%d/acs/acs1?%s", c.baseURL, year, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	return raw, nil
}
