// Package manifest tracks downloaded artifacts across harvest runs.
//
// The manifest is a JSON ledger (_manifest.json) kept in the data
// directory. Each run loads the previous ledger, consults it before
// downloading so already-captured files are skipped, records what it did,
// and writes the merged result back atomically. Only successful captures
// carry forward between runs; failures are kept in the run that produced
// them for auditing but never block a retry.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// FileName is the ledger file kept at the root of the data directory.
const FileName = "_manifest.json"

// Entry statuses. Only StatusSuccess gates future downloads; the rest are
// audit trail.
const (
	StatusSuccess        = "success"
	StatusDownloadFailed = "download_failed"
	StatusNoFilesFound   = "no_files_found"
	StatusNoNewRelease   = "no_new_release"
	StatusError          = "error"
	StatusSkipped        = "skipped"
)

// Entry is one line of the ledger: a single capture attempt against a
// source URL.
type Entry struct {
	Group        string `json:"group"`
	Name         string `json:"name"`
	SourceURL    string `json:"source_url"`
	LocalPath    string `json:"local_path,omitempty"`
	DetectedDate string `json:"detected_date,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
	Method       string `json:"method"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
}

// UnmarshalJSON accepts the legacy "hash" key for the content hash so
// ledgers written before the rename still load cleanly.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	aux := struct {
		*alias
		LegacyHash string `json:"hash"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.ContentHash == "" {
		e.ContentHash = aux.LegacyHash
	}
	return nil
}

// document is the persisted shape of the ledger.
type document struct {
	RunDate     string  `json:"run_date"`
	WindowStart string  `json:"window_12m_start"`
	WindowEnd   string  `json:"window_12m_end"`
	TotalFiles  int     `json:"total_files"`
	Entries     []Entry `json:"entries"`
}

// Manifest is the in-memory ledger for one run. It is not safe for
// concurrent use; a run has a single writer.
type Manifest struct {
	path  string
	log   *zap.Logger
	prior []Entry          // successful entries carried from previous runs
	run   []Entry          // entries recorded during this run
	index map[string]Entry // source URL -> latest successful entry
}

// Load reads the ledger at path. A missing file yields an empty manifest;
// an unreadable or unparseable one is logged and also yields an empty
// manifest, so a corrupt ledger costs re-downloads, never the run. Only
// successful entries are carried forward.
func Load(path string, log *zap.Logger) *Manifest {
	m := &Manifest{
		path:  path,
		log:   log,
		index: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no previous manifest, will download all files", zap.String("path", path))
		} else {
			log.Warn("failed to read manifest", zap.String("path", path), zap.Error(err))
		}
		return m
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("failed to parse manifest", zap.String("path", path), zap.Error(err))
		return m
	}

	for _, e := range doc.Entries {
		if e.Status != StatusSuccess || e.SourceURL == "" {
			continue
		}
		m.prior = append(m.prior, e)
		m.index[e.SourceURL] = e
	}

	log.Info("loaded manifest", zap.String("path", path), zap.Int("files", len(m.index)))
	return m
}

// HasCaptured reports whether sourceURL was already captured successfully
// and the file is still at localPath. A manifest hit with the file missing
// on disk logs a warning and returns false, forcing a re-download.
func (m *Manifest) HasCaptured(sourceURL, localPath string) bool {
	if _, ok := m.index[sourceURL]; !ok {
		return false
	}
	if _, err := os.Stat(localPath); err != nil {
		m.log.Warn("file in manifest but missing on disk", zap.String("path", localPath))
		return false
	}
	return true
}

// Record appends an entry to the run. Successful entries also update the
// URL index immediately, so later candidates in the same run (paginated
// sources list the same file twice) see them.
func (m *Manifest) Record(e Entry) {
	m.run = append(m.run, e)
	if e.Status == StatusSuccess && e.SourceURL != "" {
		m.index[e.SourceURL] = e
	}
}

// RunEntries returns the entries recorded during this run, in order.
func (m *Manifest) RunEntries() []Entry {
	return m.run
}

// Checkpoint writes the current merged ledger so an interrupted run keeps
// the progress made so far.
func (m *Manifest) Checkpoint(runDate time.Time) error {
	if _, err := m.write(runDate); err != nil {
		return fmt.Errorf("checkpointing manifest: %w", err)
	}
	m.log.Debug("checkpointed manifest", zap.Int("run_entries", len(m.run)))
	return nil
}

// Finalize writes the merged ledger at the end of the run: prior successes
// not superseded by this run, followed by everything this run recorded.
func (m *Manifest) Finalize(runDate time.Time) error {
	total, err := m.write(runDate)
	if err != nil {
		return fmt.Errorf("finalizing manifest: %w", err)
	}
	m.log.Info("wrote manifest",
		zap.String("path", m.path),
		zap.Int("total_files", total))
	return nil
}

// merged returns prior-but-not-superseded entries followed by the run's
// entries, in the document order the ledger persists.
func (m *Manifest) merged() []Entry {
	superseded := make(map[string]bool, len(m.run))
	for _, e := range m.run {
		if e.SourceURL != "" {
			superseded[e.SourceURL] = true
		}
	}

	entries := make([]Entry, 0, len(m.prior)+len(m.run))
	for _, e := range m.prior {
		if !superseded[e.SourceURL] {
			entries = append(entries, e)
		}
	}
	return append(entries, m.run...)
}

// Tracked returns how many successful captures the merged ledger holds.
func (m *Manifest) Tracked() int {
	total := 0
	for _, e := range m.merged() {
		if e.Status == StatusSuccess {
			total++
		}
	}
	return total
}

// write persists prior-but-not-superseded entries plus the run's entries
// as one document and returns how many successful files it tracks. The
// write goes to a temp sibling first and is renamed into place, so a crash
// mid-write leaves the previous ledger intact.
func (m *Manifest) write(runDate time.Time) (int, error) {
	entries := m.merged()

	total := 0
	for _, e := range entries {
		if e.Status == StatusSuccess {
			total++
		}
	}

	doc := document{
		RunDate:     runDate.Format(time.RFC3339),
		WindowStart: runDate.AddDate(0, 0, -365).Format(time.RFC3339),
		WindowEnd:   runDate.Format(time.RFC3339),
		TotalFiles:  total,
		Entries:     entries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encoding manifest: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return 0, fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return 0, fmt.Errorf("replacing manifest: %w", err)
	}
	return total, nil
}
