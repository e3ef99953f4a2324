package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

const seedManifest = `{
  "run_date": "2026-01-10T08:00:00Z",
  "window_12m_start": "2025-01-10T08:00:00Z",
  "window_12m_end": "2026-01-10T08:00:00Z",
  "total_files": 2,
  "entries": [
    {
      "group": "OFLC",
      "name": "LCA Disclosure Data",
      "source_url": "https://example.gov/lca_fy2025_q1.xlsx",
      "local_path": "OFLC/lca_fy2025_q1.xlsx",
      "detected_date": "2024-12-31",
      "method": "scrape_or_pattern",
      "status": "success",
      "content_hash": "abc123"
    },
    {
      "group": "VisaBulletin",
      "name": "Visa Bulletin",
      "source_url": "https://example.gov/bulletin-feb-2026.html",
      "local_path": "VisaBulletin/bulletin-feb-2026.html",
      "detected_date": "2026-02-01",
      "method": "scrape",
      "status": "success",
      "hash": "legacy456"
    },
    {
      "group": "WARN/TX",
      "name": "Texas WARN",
      "source_url": "https://example.gov/warn-tx.xlsx",
      "method": "scrape",
      "status": "download_failed",
      "notes": "connection reset"
    }
  ]
}`

func writeSeed(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(seedManifest), 0644); err != nil {
		t.Fatalf("Failed to write seed manifest: %v", err)
	}
	return path
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to touch %s: %v", path, err)
	}
}

func readDocument(t *testing.T, path string) document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to parse manifest: %v", err)
	}
	return doc
}

func TestLoadMissingFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := Load(filepath.Join(tmpDir, FileName), zap.NewNop())

	if m.HasCaptured("https://example.gov/anything.pdf", filepath.Join(tmpDir, "anything.pdf")) {
		t.Error("HasCaptured() = true on empty manifest, want false")
	}
	if len(m.RunEntries()) != 0 {
		t.Errorf("RunEntries() = %d entries on fresh manifest, want 0", len(m.RunEntries()))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt manifest: %v", err)
	}

	// A corrupt ledger degrades to an empty one, it never kills the run.
	m := Load(path, zap.NewNop())
	if m.HasCaptured("https://example.gov/x.pdf", path) {
		t.Error("HasCaptured() = true after corrupt load, want false")
	}
}

func TestLoadCarriesForwardOnlySuccesses(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeSeed(t, tmpDir)
	touch(t, filepath.Join(tmpDir, "OFLC", "lca_fy2025_q1.xlsx"))
	touch(t, filepath.Join(tmpDir, "warn-tx.xlsx"))

	m := Load(path, zap.NewNop())

	if !m.HasCaptured("https://example.gov/lca_fy2025_q1.xlsx", filepath.Join(tmpDir, "OFLC", "lca_fy2025_q1.xlsx")) {
		t.Error("HasCaptured() = false for prior success with file on disk, want true")
	}
	// The failed download is on disk but must not gate a retry.
	if m.HasCaptured("https://example.gov/warn-tx.xlsx", filepath.Join(tmpDir, "warn-tx.xlsx")) {
		t.Error("HasCaptured() = true for prior download_failed entry, want false")
	}
}

func TestHasCapturedMissingOnDisk(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeSeed(t, tmpDir)
	m := Load(path, zap.NewNop())

	// In the ledger, but nobody created the file.
	if m.HasCaptured("https://example.gov/lca_fy2025_q1.xlsx", filepath.Join(tmpDir, "OFLC", "lca_fy2025_q1.xlsx")) {
		t.Error("HasCaptured() = true with file missing on disk, want false")
	}
}

func TestRecordGatesLaterCandidatesInSameRun(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := Load(filepath.Join(tmpDir, FileName), zap.NewNop())

	local := filepath.Join(tmpDir, "USCIS", "i129_fy2025.xlsx")
	touch(t, local)

	m.Record(Entry{
		Group:     "USCIS",
		Name:      "I-129 Employment Data",
		SourceURL: "https://example.gov/i129_fy2025.xlsx",
		LocalPath: "USCIS/i129_fy2025.xlsx",
		Method:    "uscis_employment_data",
		Status:    StatusSuccess,
	})

	// Paginated listings surface the same file twice; the second sighting
	// must see the first.
	if !m.HasCaptured("https://example.gov/i129_fy2025.xlsx", local) {
		t.Error("HasCaptured() = false for URL recorded earlier in the run, want true")
	}
}

func TestRecordFailureDoesNotGate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	m := Load(filepath.Join(tmpDir, FileName), zap.NewNop())

	local := filepath.Join(tmpDir, "f.pdf")
	touch(t, local)

	m.Record(Entry{
		SourceURL: "https://example.gov/f.pdf",
		Status:    StatusDownloadFailed,
	})

	if m.HasCaptured("https://example.gov/f.pdf", local) {
		t.Error("HasCaptured() = true after a failed attempt, want false")
	}
}

func TestTrackedCountsMergedSuccesses(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeSeed(t, tmpDir)
	m := Load(path, zap.NewNop())

	// The seed carries two successes; its download_failed entry never counts.
	if got := m.Tracked(); got != 2 {
		t.Fatalf("Tracked() after load = %d, want 2", got)
	}

	m.Record(Entry{
		SourceURL: "https://example.gov/new.pdf",
		Status:    StatusSuccess,
	})
	if got := m.Tracked(); got != 3 {
		t.Errorf("Tracked() after new success = %d, want 3", got)
	}

	m.Record(Entry{
		SourceURL: "https://example.gov/broken.pdf",
		Status:    StatusDownloadFailed,
	})
	if got := m.Tracked(); got != 3 {
		t.Errorf("Tracked() after failure = %d, want 3 still", got)
	}

	// Re-capturing a prior URL supersedes its entry rather than adding one.
	m.Record(Entry{
		SourceURL: "https://example.gov/lca_fy2025_q1.xlsx",
		Status:    StatusSuccess,
	})
	if got := m.Tracked(); got != 3 {
		t.Errorf("Tracked() after superseding capture = %d, want 3 still", got)
	}
}

func TestFinalizeMergesAndSupersedes(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeSeed(t, tmpDir)
	m := Load(path, zap.NewNop())

	// Re-capture the LCA file and fail on a new source.
	m.Record(Entry{
		Group:        "OFLC",
		Name:         "LCA Disclosure Data",
		SourceURL:    "https://example.gov/lca_fy2025_q1.xlsx",
		LocalPath:    "OFLC/lca_fy2025_q1.xlsx",
		DetectedDate: "2024-12-31",
		Method:       "scrape_or_pattern",
		Status:       StatusSuccess,
		ContentHash:  "def789",
	})
	m.Record(Entry{
		Group:     "BLS_JOLTS",
		Name:      "JOLTS",
		SourceURL: "https://api.example.gov/jolts",
		Method:    "api",
		Status:    StatusError,
		Notes:     "boom",
	})

	runDate := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	if err := m.Finalize(runDate); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	doc := readDocument(t, path)

	if doc.RunDate != "2026-03-15T12:00:00Z" {
		t.Errorf("run_date = %q, want %q", doc.RunDate, "2026-03-15T12:00:00Z")
	}
	if doc.WindowStart != "2025-03-15T12:00:00Z" {
		t.Errorf("window_12m_start = %q, want %q", doc.WindowStart, "2025-03-15T12:00:00Z")
	}
	if doc.WindowEnd != doc.RunDate {
		t.Errorf("window_12m_end = %q, want run_date %q", doc.WindowEnd, doc.RunDate)
	}

	// Prior visa-bulletin success survives, prior LCA success is superseded
	// by this run's entry, the prior download_failed is dropped, and both
	// run entries are present.
	if len(doc.Entries) != 3 {
		t.Fatalf("entries = %d, want 3: %+v", len(doc.Entries), doc.Entries)
	}

	byURL := make(map[string]Entry)
	for _, e := range doc.Entries {
		byURL[e.SourceURL] = e
	}

	lca, ok := byURL["https://example.gov/lca_fy2025_q1.xlsx"]
	if !ok {
		t.Fatal("superseding LCA entry missing from finalized manifest")
	}
	if lca.ContentHash != "def789" {
		t.Errorf("LCA content_hash = %q, want the run's %q", lca.ContentHash, "def789")
	}

	if _, ok := byURL["https://example.gov/bulletin-feb-2026.html"]; !ok {
		t.Error("prior visa-bulletin success missing from finalized manifest")
	}
	if _, ok := byURL["https://example.gov/warn-tx.xlsx"]; ok {
		t.Error("prior download_failed entry carried forward, want dropped")
	}
	if _, ok := byURL["https://api.example.gov/jolts"]; !ok {
		t.Error("run error entry missing from finalized manifest")
	}

	if doc.TotalFiles != 2 {
		t.Errorf("total_files = %d, want 2", doc.TotalFiles)
	}

	// The temp sibling must not linger.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp manifest still present after Finalize: %v", err)
	}
}

func TestLoadLegacyHashKey(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := writeSeed(t, tmpDir)
	m := Load(path, zap.NewNop())

	if err := m.Finalize(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	doc := readDocument(t, path)
	for _, e := range doc.Entries {
		if e.SourceURL == "https://example.gov/bulletin-feb-2026.html" {
			if e.ContentHash != "legacy456" {
				t.Errorf("content_hash = %q, want legacy hash %q carried over", e.ContentHash, "legacy456")
			}
			return
		}
	}
	t.Fatal("visa-bulletin entry missing from finalized manifest")
}

func TestCheckpointWritesMidRun(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "manifest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, FileName)
	m := Load(path, zap.NewNop())

	m.Record(Entry{
		SourceURL: "https://example.gov/a.pdf",
		Status:    StatusSuccess,
	})

	if err := m.Checkpoint(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	doc := readDocument(t, path)
	if len(doc.Entries) != 1 || doc.TotalFiles != 1 {
		t.Errorf("checkpointed doc has %d entries, total_files %d, want 1 and 1",
			len(doc.Entries), doc.TotalFiles)
	}
}
