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

// warnState captures WARN layoff notices for one state. States publish
// very differently (California posts a single living spreadsheet, Texas
// and Florida post yearly files on listing pages), so the source's method
// picks the strategy while files and entries land under WARN/{state}.
type warnState struct{}

func (warnState) Name() string { return "warn_state" }

func (warnState) Run(ctx context.Context, env *Env, src config.Source) error {
	state := src.State
	if state == "" {
		state = "UNKNOWN"
	}
	group := "WARN/" + state

	env.Log.Info("Processing WARN state", zap.String("state", state), zap.String("method", src.Method))

	dir, err := env.groupDir(group)
	if err != nil {
		return err
	}

	if src.Method == "direct_file" {
		return warnDirect(ctx, env, src, state, group, dir)
	}
	return warnScrape(ctx, env, src, state, group, dir)
}

// warnDirect downloads a state's single full WARN report.
func warnDirect(ctx context.Context, env *Env, src config.Source, state, group, dir string) error {
	url := src.DirectURL()
	if url == "" {
		env.Log.Warn("Missing file_url", zap.String("state", state))
		return nil
	}

	filename := link.Filename(url)
	if filename == "" {
		filename = fmt.Sprintf("WARN_%s.xlsx", state)
	}
	dest := filepath.Join(dir, filename)

	if err := env.download(ctx, url, dest); err != nil {
		env.Log.Warn("Download failed", zap.String("state", state), zap.Error(err))
		env.recordMiss(src, group, url, manifest.StatusDownloadFailed, "Failed to download")
		return nil
	}

	env.Log.Info("Downloaded WARN report", zap.String("state", state), zap.String("file", filename))
	return env.recordSuccess(src, group, url, dest,
		env.RunDate.Format(time.RFC3339),
		fmt.Sprintf("%s WARN report - full dataset requiring date filtering", state))
}

// warnScrape collects downloadable notice files from one or more listing
// pages. A page that fails to fetch is logged and skipped so one broken
// year archive does not lose the rest of the state.
func warnScrape(ctx context.Context, env *Env, src config.Source, state, group, dir string) error {
	pages := src.Pages()
	if len(pages) == 0 {
		env.Log.Warn("Missing page_url", zap.String("state", state))
		return nil
	}

	var all []link.Link
	for _, pageURL := range pages {
		links, err := discover(ctx, env, src, pageURL)
		if err != nil {
			env.Log.Warn("Error scraping page", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		all = append(all, links...)
	}

	recent := recency.Select(all, env.Window)
	if len(recent) == 0 {
		env.Log.Warn("No recent downloadable files", zap.String("state", state))
		env.recordMiss(src, group, pages[0], manifest.StatusNoFilesFound, "No downloadable files within 12-month window")
		return nil
	}

	recency.SortNewestFirst(recent)

	for _, dl := range recent {
		filename := link.Filename(dl.URL)
		if filename == "" {
			filename = fmt.Sprintf("WARN_%s_%s%s", state, dl.Date.Format("200601"), link.GuessExtension(dl.URL, ""))
		}
		dest := filepath.Join(dir, filename)

		if env.Manifest.HasCaptured(dl.URL, dest) || exists(dest) {
			continue
		}

		if err := env.download(ctx, dl.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", dl.URL), zap.Error(err))
			continue
		}

		env.Log.Info("Downloaded WARN file", zap.String("state", state), zap.String("file", filename))
		if err := env.recordSuccess(src, group, dl.URL, dest, dl.Date.Format(dateLayout), dl.Text); err != nil {
			return err
		}
	}
	return nil
}
