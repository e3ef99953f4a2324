package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestName(t *testing.T) {
	runDate := time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)
	got := Name(runDate)
	want := "latest_datasets_2026-03-15.zip"
	if got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestZip(t *testing.T) {
	dataDir, err := os.MkdirTemp("", "archive-data")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dataDir)

	exportsDir, err := os.MkdirTemp("", "archive-exports")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(exportsDir)

	files := map[string]string{
		"_manifest.json":            `{"entries":[]}`,
		"LCA/lca_2026-01.xlsx":      "spreadsheet bytes",
		"WARN/TX/WARN_TX.xlsx":      "texas warn data",
		"BLS_CES/ces_20260315.json": `{"status":"REQUEST_SUCCEEDED"}`,
	}
	for rel, content := range files {
		path := filepath.Join(dataDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	// Leftover partials must not end up in the archive.
	if err := os.WriteFile(filepath.Join(dataDir, "_manifest.json.tmp"), []byte("partial"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "LCA", "lca.xlsx.part"), []byte("partial"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	zipPath := filepath.Join(exportsDir, Name(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
	if err := Zip(dataDir, zipPath); err != nil {
		t.Fatalf("Zip() error = %v", err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)

	want := []string{
		"BLS_CES/ces_20260315.json",
		"LCA/lca_2026-01.xlsx",
		"WARN/TX/WARN_TX.xlsx",
		"_manifest.json",
	}
	if len(names) != len(want) {
		t.Fatalf("Archive has %d entries, want %d: %v", len(names), len(want), names)
	}
	for i, name := range names {
		if name != want[i] {
			t.Errorf("Entry %d = %q, want %q", i, name, want[i])
		}
	}

	// Round-trip one file to make sure contents survive compression.
	for _, f := range r.File {
		if f.Name != "WARN/TX/WARN_TX.xlsx" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry: %v", err)
		}
		if string(data) != "texas warn data" {
			t.Errorf("Entry content = %q, want %q", data, "texas warn data")
		}
	}
}

func TestZipCreatesExportsDir(t *testing.T) {
	dataDir, err := os.MkdirTemp("", "archive-data")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dataDir)

	if err := os.WriteFile(filepath.Join(dataDir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	base, err := os.MkdirTemp("", "archive-exports")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(base)

	zipPath := filepath.Join(base, "nested", "exports", "out.zip")
	if err := Zip(dataDir, zipPath); err != nil {
		t.Fatalf("Zip() error = %v", err)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("Archive not created: %v", err)
	}
}

func TestZipMissingDataDir(t *testing.T) {
	exportsDir, err := os.MkdirTemp("", "archive-exports")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(exportsDir)

	zipPath := filepath.Join(exportsDir, "out.zip")
	if err := Zip(filepath.Join(exportsDir, "no-such-dir"), zipPath); err == nil {
		t.Fatal("Expected error for missing data dir, got nil")
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Errorf("Half-written archive left behind: %v", err)
	}
}
