package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
)

// apiFetch captures sources served by a government JSON API rather than a
// listing page. The group name decides which API: BLS time series or
// Census ACS.
type apiFetch struct{}

func (apiFetch) Name() string { return "api" }

func (apiFetch) Run(ctx context.Context, env *Env, src config.Source) error {
	switch {
	case strings.Contains(src.Group, "BLS"):
		return runBLS(ctx, env, src)
	case strings.Contains(src.Group, "ACS"):
		return runCensus(ctx, env, src)
	default:
		env.Log.Warn("API source has no recognized group",
			zap.String("source", src.Name), zap.String("group", src.Group))
		return nil
	}
}

// runBLS pulls the configured employment series for the current and prior
// year and archives the raw response.
func runBLS(ctx context.Context, env *Env, src config.Source) error {
	if len(src.BLSSeriesIDs) == 0 {
		env.Log.Warn("No BLS series IDs configured", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	startYear := env.RunDate.Year() - 1
	endYear := env.RunDate.Year()

	raw, err := env.BLS.FetchTimeSeries(ctx, src.BLSSeriesIDs, startYear, endYear)
	if err != nil {
		return fmt.Errorf("fetching BLS data: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("ces_%s.json", env.RunDate.Format("20060102")))
	if err := saveJSON(env, dest, raw); err != nil {
		return err
	}

	env.Log.Info("Saved BLS data", zap.String("file", filepath.Base(dest)))
	return env.recordSuccess(src, src.Group, src.APIEndpoint, dest,
		env.RunDate.Format(time.RFC3339),
		"Series: "+strings.Join(src.BLSSeriesIDs, ", "))
}

// runCensus pulls the configured ACS 1-year variables for the latest
// published year and archives the raw response.
func runCensus(ctx context.Context, env *Env, src config.Source) error {
	if len(src.ACSVariables) == 0 {
		env.Log.Warn("No ACS variables configured", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	geography := src.ACSGeography
	if geography == "" {
		geography = "state:*"
	}

	// ACS 1-year estimates for a year appear the following autumn.
	year := env.RunDate.Year() - 1

	raw, err := env.Census.FetchACS1(ctx, year, src.ACSVariables, geography)
	if err != nil {
		return fmt.Errorf("fetching ACS data: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("acs1_%d_nativity.json", year))
	if err := saveJSON(env, dest, raw); err != nil {
		return err
	}

	env.Log.Info("Saved ACS data", zap.String("file", filepath.Base(dest)))
	return env.recordSuccess(src, src.Group, src.APIEndpoint, dest,
		env.RunDate.Format(time.RFC3339),
		fmt.Sprintf("Year: %d, Variables: %s", year, strings.Join(src.ACSVariables, ", ")))
}

// saveJSON writes an API response pretty-printed so the archived file is
// diffable, and counts it as a captured file.
func saveJSON(env *Env, dest string, raw []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting API response: %w", err)
	}
	if err := os.WriteFile(dest, pretty.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing API response: %w", err)
	}
	env.Metrics.IncrCounter("files_downloaded")
	env.Metrics.AddCounter("bytes_downloaded", int64(pretty.Len()))
	return nil
}
