package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/fetch"
	"github.com/pfrederiksen/labordata/internal/filter"
	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/manifest"
	"github.com/pfrederiksen/labordata/internal/metrics"
	"github.com/pfrederiksen/labordata/internal/recency"
)

// dateLayout is the format used for detected dates derived from link text.
const dateLayout = "2006-01-02"

// Handler processes one configured source: discovers what the source
// publishes, downloads anything new, and records manifest entries.
type Handler interface {
	// Name returns the method name the handler serves.
	Name() string

	// Run captures the source. A returned error means the source could not
	// be processed at all; the runner records it as an error entry.
	// Per-file failures are recorded by the handler itself and do not
	// produce an error.
	Run(ctx context.Context, env *Env, src config.Source) error
}

// BLSFetcher is the slice of the BLS API client the api handler needs.
type BLSFetcher interface {
	FetchTimeSeries(ctx context.Context, seriesIDs []string, startYear, endYear int) ([]byte, error)
}

// CensusFetcher is the slice of the Census API client the api handler needs.
type CensusFetcher interface {
	FetchACS1(ctx context.Context, year int, variables []string, geography string) ([]byte, error)
}

// Env carries the run-scoped collaborators shared by every handler.
type Env struct {
	Fetch    *fetch.Client
	Manifest *manifest.Manifest
	BLS      BLSFetcher
	Census   CensusFetcher
	DataDir  string
	RunDate  time.Time
	Window   recency.Window
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// groupDir returns the destination directory for a group under the data
// dir, creating it if needed.
func (e *Env) groupDir(group string) (string, error) {
	dir := filepath.Join(e.DataDir, filepath.FromSlash(group))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating group directory: %w", err)
	}
	return dir, nil
}

// relPath converts a destination path into the data-dir-relative form the
// manifest stores.
func (e *Env) relPath(dest string) string {
	rel, err := filepath.Rel(e.DataDir, dest)
	if err != nil {
		return dest
	}
	return filepath.ToSlash(rel)
}

// findLinks fetches a listing page through the shared client and counts it.
func (e *Env) findLinks(ctx context.Context, pageURL, selector string) ([]link.Link, error) {
	links, err := e.Fetch.FindLinks(ctx, pageURL, selector)
	if err != nil {
		return nil, err
	}
	e.Metrics.IncrCounter("pages_fetched")
	return links, nil
}

// download fetches one file to dest, updating the run counters.
func (e *Env) download(ctx context.Context, rawURL, dest string) error {
	if err := e.Fetch.Download(ctx, rawURL, dest); err != nil {
		e.Metrics.IncrCounter("download_failures")
		return err
	}
	e.Metrics.IncrCounter("files_downloaded")
	if fi, err := os.Stat(dest); err == nil {
		e.Metrics.AddCounter("bytes_downloaded", fi.Size())
	}
	return nil
}

// recordSuccess hashes the downloaded file and records a success entry for
// it. group may differ from src.Group (WARN sources record per-state).
func (e *Env) recordSuccess(src config.Source, group, sourceURL, dest, detectedDate, notes string) error {
	hash, err := manifest.HashFile(dest)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", dest, err)
	}
	e.Manifest.Record(manifest.Entry{
		Group:        group,
		Name:         src.Name,
		SourceURL:    sourceURL,
		LocalPath:    e.relPath(dest),
		DetectedDate: detectedDate,
		DownloadedAt: time.Now().Format(time.RFC3339),
		Method:       src.Method,
		Status:       manifest.StatusSuccess,
		ContentHash:  hash,
		Notes:        notes,
	})
	return nil
}

// recordMiss records a non-success entry (no files found, skipped, failed
// download) for the source.
func (e *Env) recordMiss(src config.Source, group, sourceURL, status, notes string) {
	e.Manifest.Record(manifest.Entry{
		Group:     group,
		Name:      src.Name,
		SourceURL: sourceURL,
		Method:    src.Method,
		Status:    status,
		Notes:     notes,
	})
}

// exists reports whether a destination file is already on disk.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// discover fetches a listing page and applies the source's downloadable,
// regex and keyword filters in the order the methods expect.
func discover(ctx context.Context, env *Env, src config.Source, pageURL string) ([]link.Link, error) {
	links, err := env.findLinks(ctx, pageURL, src.Selector)
	if err != nil {
		return nil, err
	}
	links = filter.Downloadable(links)
	if len(src.RegexFilters) > 0 {
		links = filter.Regex(links, src.RegexFilters, env.Log)
	}
	if src.Pattern != "" {
		links = filter.Keyword(links, src.Pattern)
	}
	return links, nil
}

// Registry resolves a configured source to the handler that captures it.
type Registry struct {
	byMethod map[string]Handler
	warn     Handler
}

// NewRegistry returns a registry with every built-in handler installed.
func NewRegistry() *Registry {
	r := &Registry{
		byMethod: make(map[string]Handler),
		warn:     warnState{},
	}
	for _, h := range []Handler{
		scrapeOrPattern{},
		scrapeHandler{},
		scrapeIfAvailable{},
		visaBulletin{},
		visaAnnualReports{},
		visaMonthly{},
		lcaDisclosure{},
		permDisclosure{},
		uscisEmployment{},
		manualOrAuth{},
		apiFetch{},
		directFile{},
	} {
		r.byMethod[h.Name()] = h
	}
	return r
}

// ForSource resolves the handler for a source. Sources in the WARN group
// are routed per-state before the method is considered.
func (r *Registry) ForSource(src config.Source) (Handler, bool) {
	if src.Group == "WARN" {
		return r.warn, true
	}
	h, ok := r.byMethod[src.Method]
	return h, ok
}
