// Package archive bundles a completed download tree into a dated zip so a
// whole run can be shipped or unpacked elsewhere in one piece.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Name returns the archive file name for a run date, e.g.
// "latest_datasets_2026-03-15.zip".
func Name(runDate time.Time) string {
	return fmt.Sprintf("latest_datasets_%s.zip", runDate.Format("2006-01-02"))
}

// Zip writes every file under dataDir into a deflate-compressed archive at
// zipPath. Entry names are stored relative to dataDir so the archive unpacks
// into the same layout. Partial files left behind by interrupted writes
// (.tmp, .part) are skipped. On failure the half-written archive is removed.
func Zip(dataDir, zipPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	zw := zip.NewWriter(f)

	walkErr := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") || strings.HasSuffix(path, ".part") {
			return nil
		}

		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return err
		}
		return src.Close()
	})
	if walkErr != nil {
		zw.Close()
		f.Close()
		os.Remove(zipPath)
		return fmt.Errorf("archiving %s: %w", dataDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(zipPath)
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}
