package handler

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/manifest"
)

// directFile captures sources that publish one living report file at a
// fixed URL. The file is re-fetched every run; the new entry supersedes
// the previous one when the manifest is finalized.
type directFile struct{}

func (directFile) Name() string { return "direct_file" }

func (directFile) Run(ctx context.Context, env *Env, src config.Source) error {
	url := src.DirectURL()
	if url == "" {
		env.Log.Warn("Missing url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	filename := link.Filename(url)
	if filename == "" {
		filename = "WARN_Report.xlsx"
	}
	dest := filepath.Join(dir, filename)

	if err := env.download(ctx, url, dest); err != nil {
		env.Log.Warn("Download failed", zap.String("url", url), zap.Error(err))
		env.recordMiss(src, src.Group, url, manifest.StatusDownloadFailed, "Failed to download")
		return nil
	}

	env.Log.Info("Downloaded file", zap.String("file", filename))
	return env.recordSuccess(src, src.Group, url, dest,
		env.RunDate.Format(time.RFC3339),
		"Full WARN report - requires date filtering")
}

// manualOrAuth marks sources behind a login or paywall. Nothing is
// fetched; the skip is recorded so the run report stays honest about
// coverage.
type manualOrAuth struct{}

func (manualOrAuth) Name() string { return "manual_or_auth" }

func (manualOrAuth) Run(ctx context.Context, env *Env, src config.Source) error {
	env.Log.Warn("Skipping source, requires authentication", zap.String("source", src.Name))
	env.recordMiss(src, src.Group, src.PageURL, manifest.StatusSkipped,
		"Requires authentication/subscription - manual download needed")
	return nil
}
