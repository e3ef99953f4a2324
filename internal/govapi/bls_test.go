package govapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchTimeSeries(t *testing.T) {
	response := `{"status":"REQUEST_SUCCEEDED","message":[],"Results":{"series":[]}}`

	var gotBody blsRequest
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("Failed to parse request body: %v", err)
		}
		w.Write([]byte(response))
	}))
	defer server.Close()

	client := NewBLS("secret-key", "test-agent")
	client.baseURL = server.URL

	raw, err := client.FetchTimeSeries(context.Background(), []string{"CES0000000001"}, 2025, 2026)
	if err != nil {
		t.Fatalf("FetchTimeSeries() error = %v", err)
	}

	if string(raw) != response {
		t.Errorf("FetchTimeSeries() = %q, want raw body %q", raw, response)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if len(gotBody.SeriesID) != 1 || gotBody.SeriesID[0] != "CES0000000001" {
		t.Errorf("request seriesid = %v, want [CES0000000001]", gotBody.SeriesID)
	}
	if gotBody.StartYear != "2025" || gotBody.EndYear != "2026" {
		t.Errorf("request years = %s-%s, want 2025-2026 as strings", gotBody.StartYear, gotBody.EndYear)
	}
	if gotBody.RegistrationKey != "secret-key" {
		t.Errorf("request registrationkey = %q, want %q", gotBody.RegistrationKey, "secret-key")
	}
}

func TestFetchTimeSeriesOmitsEmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			t.Errorf("Failed to parse request body: %v", err)
		}
		if _, ok := fields["registrationkey"]; ok {
			t.Error("registrationkey present in request without an API key")
		}
		w.Write([]byte(`{"status":"REQUEST_SUCCEEDED"}`))
	}))
	defer server.Close()

	client := NewBLS("", "test-agent")
	client.baseURL = server.URL

	if _, err := client.FetchTimeSeries(context.Background(), []string{"JTS000000000000000JOL"}, 2025, 2026); err != nil {
		t.Fatalf("FetchTimeSeries() error = %v", err)
	}
}

func TestFetchTimeSeriesRejectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_NOT_PROCESSED","message":["invalid series"]}`))
	}))
	defer server.Close()

	client := NewBLS("", "test-agent")
	client.baseURL = server.URL

	if _, err := client.FetchTimeSeries(context.Background(), []string{"BOGUS"}, 2025, 2026); err == nil {
		t.Fatal("FetchTimeSeries() error = nil on REQUEST_NOT_PROCESSED, want error")
	}
}

func TestFetchTimeSeriesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewBLS("", "test-agent")
	client.baseURL = server.URL

	if _, err := client.FetchTimeSeries(context.Background(), []string{"CES0000000001"}, 2025, 2026); err == nil {
		t.Fatal("FetchTimeSeries() error = nil on 503, want error")
	}
}
