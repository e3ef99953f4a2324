// Package govapi provides clients for the government statistical APIs
// harvested alongside the scraped portals: BLS time series and Census ACS
// estimates. Clients return the raw JSON payload so callers can archive
// responses byte-for-byte.
package govapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const blsBaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data/"

// BLSClient is a client for the BLS public time-series API v2.
type BLSClient struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewBLS creates a BLS client. The API key is optional; without one the
// public quota applies.
func NewBLS(apiKey, userAgent string) *BLSClient {
	return &BLSClient{
		apiKey:    apiKey,
		baseURL:   blsBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type blsRequest struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type blsEnvelope struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
}

// FetchTimeSeries fetches the given series for the year range and returns
// the raw response body. A transport failure, a non-2xx status, or a
// request the API reports as unprocessed is an error; nothing is returned
// for the caller to mistake for data.
func (c *BLSClient) FetchTimeSeries(ctx context.Context, seriesIDs []string, startYear, endYear int) ([]byte, error) {
	payload := blsRequest{
		SeriesID:        seriesIDs,
		StartYear:       fmt.Sprintf("%d", startYear),
		EndYear:         fmt.Sprintf("%d", endYear),
		RegistrationKey: c.apiKey,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

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

	var envelope blsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if envelope.Status != "REQUEST_SUCCEEDED" {
		return nil, fmt.Errorf("request not processed: %s", strings.Join(envelope.Message, "; "))
	}

	return raw, nil
}
