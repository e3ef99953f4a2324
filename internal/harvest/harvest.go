// Package harvest runs one full capture pass: every configured source is
// dispatched to its handler, results are recorded in the manifest, and
// the data directory is archived for export.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/archive"
	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/fetch"
	"github.com/pfrederiksen/labordata/internal/govapi"
	"github.com/pfrederiksen/labordata/internal/handler"
	"github.com/pfrederiksen/labordata/internal/manifest"
	"github.com/pfrederiksen/labordata/internal/metrics"
	"github.com/pfrederiksen/labordata/internal/notify"
	"github.com/pfrederiksen/labordata/internal/recency"
)

// sourcePause spaces out sources to stay polite across hosts.
const sourcePause = time.Second

// Options tune a single harvest run.
type Options struct {
	// RunDate stamps the run; zero means now.
	RunDate time.Time
	// Notifier announces the run's new captures when set.
	Notifier notify.Notifier
	// SkipArchive leaves the export zip out.
	SkipArchive bool
}

// Report is what one run produced, for rendering and for exit codes.
type Report struct {
	RunID        string           `json:"run_id"`
	RunDate      time.Time        `json:"run_date"`
	WindowStart  time.Time        `json:"window_start"`
	WindowEnd    time.Time        `json:"window_end"`
	Entries      []manifest.Entry `json:"entries"`
	NewCaptures  int              `json:"new_captures"`
	TotalTracked int              `json:"total_tracked"`
	ZipPath      string           `json:"zip_path,omitempty"`
	Metrics      metrics.Snapshot `json:"metrics"`
}

// Runner executes harvest runs for one configuration.
type Runner struct {
	cfg      *config.Config
	opts     Options
	registry *handler.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates a Runner.
func New(cfg *config.Config, log *zap.Logger, opts Options) *Runner {
	return &Runner{
		cfg:      cfg,
		opts:     opts,
		registry: handler.NewRegistry(),
		metrics:  metrics.New(),
		log:      log,
	}
}

// Run executes one harvest pass. Source and file failures degrade to
// manifest entries; the returned error is reserved for conditions that
// make the run itself impossible (no sources, unwritable data dir,
// cancellation).
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if len(r.cfg.Sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	runDate := r.opts.RunDate
	if runDate.IsZero() {
		runDate = time.Now().UTC()
	}
	runID := uuid.NewString()
	log := r.log.With(zap.String("run_id", runID))

	window := recency.Window{Reference: runDate, Months: r.cfg.WindowMonths}
	log.Info("starting harvest",
		zap.String("run_date", runDate.Format("2006-01-02")),
		zap.String("window_start", window.Start().Format("2006-01-02")),
		zap.Int("sources", len(r.cfg.Sources)))

	if err := os.MkdirAll(r.cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	m := manifest.Load(filepath.Join(r.cfg.DataDir, manifest.FileName), log)

	env := &handler.Env{
		Fetch:    fetch.New(r.cfg.Interval(), log.Named("fetch")),
		Manifest: m,
		BLS:      govapi.NewBLS(os.Getenv("BLS_API_KEY"), fetch.UserAgent),
		Census:   govapi.NewCensus(os.Getenv("CENSUS_API_KEY"), fetch.UserAgent),
		DataDir:  r.cfg.DataDir,
		RunDate:  runDate,
		Window:   window,
		Log:      log,
		Metrics:  r.metrics,
	}

	for i, src := range r.cfg.Sources {
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(sourcePause):
			}
		}
		if ctx.Err() != nil {
			// Checkpoints preserved the progress so far; write the
			// merged ledger and stop.
			if err := m.Finalize(runDate); err != nil {
				log.Warn("failed to write manifest", zap.Error(err))
			}
			return nil, ctx.Err()
		}

		r.processSource(ctx, env, src)

		if err := m.Checkpoint(runDate); err != nil {
			log.Warn("checkpoint failed", zap.String("source", src.Name), zap.Error(err))
		}
	}

	r.metrics.AddCounter("entries_recorded", int64(len(m.RunEntries())))

	if err := m.Finalize(runDate); err != nil {
		log.Warn("failed to write manifest", zap.Error(err))
	}

	entries := m.RunEntries()
	var captured []manifest.Entry
	for _, e := range entries {
		if e.Status == manifest.StatusSuccess {
			captured = append(captured, e)
		}
	}

	zipPath := ""
	if !r.opts.SkipArchive {
		zipPath = filepath.Join(r.cfg.ExportsDir, archive.Name(runDate))
		if err := archive.Zip(r.cfg.DataDir, zipPath); err != nil {
			log.Warn("failed to create archive", zap.Error(err))
			zipPath = ""
		} else {
			log.Info("created archive", zap.String("path", zipPath))
		}
	}

	if r.opts.Notifier != nil && len(captured) > 0 {
		if err := r.opts.Notifier.Notify(captured); err != nil {
			log.Warn("failed to announce captures", zap.Error(err))
		}
	}

	report := &Report{
		RunID:        runID,
		RunDate:      runDate,
		WindowStart:  window.Start(),
		WindowEnd:    runDate,
		Entries:      entries,
		NewCaptures:  len(captured),
		TotalTracked: m.Tracked(),
		ZipPath:      zipPath,
		Metrics:      r.metrics.GetSnapshot(),
	}
	log.Info("harvest complete",
		zap.Int("new_captures", report.NewCaptures),
		zap.Int("total_tracked", report.TotalTracked))
	return report, nil
}

// processSource dispatches one source to its handler. A handler error
// becomes a status=error entry; it never stops the run.
func (r *Runner) processSource(ctx context.Context, env *handler.Env, src config.Source) {
	log := env.Log
	log.Info("processing source",
		zap.String("name", src.Name),
		zap.String("group", src.Group),
		zap.String("method", src.Method))

	h, ok := r.registry.ForSource(src)
	if !ok {
		log.Warn("unknown method",
			zap.String("method", src.Method), zap.String("source", src.Name))
		return
	}

	start := time.Now()
	err := h.Run(ctx, env, src)
	r.metrics.RecordTiming("source_duration", time.Since(start))
	r.metrics.IncrCounter("sources_processed")

	if err != nil {
		log.Error("source failed", zap.String("source", src.Name), zap.Error(err))
		env.Manifest.Record(manifest.Entry{
			Group:     entryGroup(src),
			Name:      src.Name,
			SourceURL: primaryURL(src),
			Method:    src.Method,
			Status:    manifest.StatusError,
			Notes:     err.Error(),
		})
	}
}

// entryGroup labels error entries the way the source's handler would
// have: WARN sources land under their state.
func entryGroup(src config.Source) string {
	if src.Group == "WARN" && src.State != "" {
		return "WARN/" + src.State
	}
	return src.Group
}

// primaryURL picks the URL an error entry should point at.
func primaryURL(src config.Source) string {
	if pages := src.Pages(); len(pages) > 0 {
		return pages[0]
	}
	if u := src.DirectURL(); u != "" {
		return u
	}
	return src.APIEndpoint
}
