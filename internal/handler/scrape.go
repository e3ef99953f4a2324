package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/manifest"
	"github.com/pfrederiksen/labordata/internal/recency"
)

const (
	// maxPatternDownloads caps how many of the newest in-window files a
	// scrape_or_pattern source will attempt per run.
	maxPatternDownloads = 8

	// maxScrapeDownloads caps successful downloads for a scrape source.
	maxScrapeDownloads = 15

	// maxYearbookFiles caps how many links a scrape_if_available source
	// will take from the page.
	maxYearbookFiles = 20
)

// scrapeOrPattern captures listing pages where only the newest in-window
// files are wanted.
type scrapeOrPattern struct{}

func (scrapeOrPattern) Name() string { return "scrape_or_pattern" }

func (scrapeOrPattern) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	links, err := discover(ctx, env, src, src.PageURL)
	if err != nil {
		return err
	}

	recent := recency.Select(links, env.Window)
	if len(recent) == 0 {
		env.Log.Warn("No recent files found", zap.String("source", src.Name))
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No files within 12-month window")
		return nil
	}

	recency.SortNewestFirst(recent)
	if len(recent) > maxPatternDownloads {
		recent = recent[:maxPatternDownloads]
	}

	for _, dl := range recent {
		filename := link.Filename(dl.URL)
		if filename == "" {
			filename = fmt.Sprintf("%s_%s%s", src.Group, dl.Date.Format("200601"), link.GuessExtension(dl.URL, ""))
		}
		dest := filepath.Join(dir, filename)

		if env.Manifest.HasCaptured(dl.URL, dest) {
			continue
		}

		if err := env.download(ctx, dl.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", dl.URL), zap.Error(err))
			env.Manifest.Record(manifest.Entry{
				Group:        src.Group,
				Name:         src.Name,
				SourceURL:    dl.URL,
				DetectedDate: dl.Date.Format(dateLayout),
				Method:       src.Method,
				Status:       manifest.StatusDownloadFailed,
				Notes:        dl.Text,
			})
			continue
		}

		env.Log.Info("Downloaded file", zap.String("file", filename))
		if err := env.recordSuccess(src, src.Group, dl.URL, dest, dl.Date.Format(dateLayout), dl.Text); err != nil {
			return err
		}
	}
	return nil
}

// scrapeHandler captures listing pages where everything new inside the
// window is wanted, skipping files already on disk.
type scrapeHandler struct{}

func (scrapeHandler) Name() string { return "scrape" }

func (scrapeHandler) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	links, err := discover(ctx, env, src, src.PageURL)
	if err != nil {
		return err
	}

	recent := recency.Select(links, env.Window)
	if len(recent) == 0 {
		env.Log.Warn("No recent files found", zap.String("source", src.Name))
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No files within 12-month window")
		return nil
	}

	recency.SortNewestFirst(recent)

	downloaded := 0
	for _, dl := range recent {
		if downloaded >= maxScrapeDownloads {
			break
		}

		filename := link.Filename(dl.URL)
		if filename == "" {
			filename = fmt.Sprintf("%s_%s%s", src.Group, dl.Date.Format("200601"), link.GuessExtension(dl.URL, ""))
		}
		dest := filepath.Join(dir, filename)

		if env.Manifest.HasCaptured(dl.URL, dest) || exists(dest) {
			continue
		}

		if err := env.download(ctx, dl.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", dl.URL), zap.Error(err))
			continue
		}
		downloaded++

		env.Log.Info("Downloaded file", zap.String("file", filename))
		if err := env.recordSuccess(src, src.Group, dl.URL, dest, dl.Date.Format(dateLayout), dl.Text); err != nil {
			return err
		}
	}
	return nil
}

// scrapeIfAvailable captures sources that publish irregularly (the DHS
// yearbook): whatever links the page offers are taken as the release.
type scrapeIfAvailable struct{}

func (scrapeIfAvailable) Name() string { return "scrape_if_available" }

func (scrapeIfAvailable) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	links, err := env.findLinks(ctx, src.PageURL, src.Selector)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		env.Log.Warn("No files available", zap.String("source", src.Name))
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoNewRelease, "No new yearbook release within 12 months")
		return nil
	}

	if len(links) > maxYearbookFiles {
		links = links[:maxYearbookFiles]
	}

	for _, l := range links {
		filename := link.Filename(l.URL)
		if filename == "" {
			filename = fmt.Sprintf("%s_table%s", src.Group, link.GuessExtension(l.URL, ""))
		}
		dest := filepath.Join(dir, filename)

		if env.Manifest.HasCaptured(l.URL, dest) || exists(dest) {
			continue
		}

		if err := env.download(ctx, l.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", l.URL), zap.Error(err))
			continue
		}

		env.Log.Info("Downloaded file", zap.String("file", filename))
		if err := env.recordSuccess(src, src.Group, l.URL, dest, env.RunDate.Format(time.RFC3339), l.Text); err != nil {
			return err
		}
	}
	return nil
}
