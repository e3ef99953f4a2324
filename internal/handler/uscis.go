package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/manifest"
)

// maxPortalPages bounds pagination in case the portal never runs out of
// next links.
const maxPortalPages = 20

// uscisTopicQuery preselects the employment-based form topics on the USCIS
// data portal and widens pages to 100 items.
const uscisTopicQuery = "topic_id%5B0%5D=33682&topic_id%5B1%5D=33599&topic_id%5B2%5D=33631&topic_id%5B3%5D=33674&topic_id%5B4%5D=33737&topic_id%5B5%5D=33628&topic_id%5B6%5D=33614&topic_id%5B7%5D=33685&topic_id%5B8%5D=33615&topic_id%5B9%5D=33686&topic_id%5B10%5D=33687&topic_id%5B11%5D=33690&topic_id%5B12%5D=33691&topic_id%5B13%5D=33701&ddt_mon=&ddt_yr=&query=&items_per_page=100"

// employmentKeywords pick out I-140/I-485/I-765/I-360/I-526 and EB
// inventory files among the portal's many datasets.
var employmentKeywords = []string{
	"i-140", "i140", "i-485", "i485", "i-765", "i765",
	"i-360", "i360", "i-526", "i526", "eb_", "employment",
}

var monthYearRe = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)[\s_]+(\d{4})`)

// portalURL returns the paginated portal base, adding the employment topic
// filter when the configured URL has none.
func portalURL(pageURL string) string {
	if strings.Contains(pageURL, "topic_id") {
		if !strings.Contains(pageURL, "items_per_page") {
			return pageURL + "&items_per_page=100"
		}
		return pageURL
	}
	base, _, _ := strings.Cut(pageURL, "?")
	return base + "?" + uscisTopicQuery
}

func isEmploymentFile(l link.Link) bool {
	lowerURL := strings.ToLower(l.URL)
	if !containsAny(lowerURL, ".xlsx", ".xls", ".csv") {
		return false
	}
	combined := strings.ToLower(l.URL + " " + l.Text)
	return containsAny(combined, employmentKeywords...)
}

// hasNextLink reports whether the page advertises another page of results.
func hasNextLink(links []link.Link) bool {
	for _, l := range links {
		if strings.Contains(strings.ToLower(l.Text), "next") ||
			strings.Contains(l.Text, "›") || strings.Contains(l.Text, "»") {
			return true
		}
	}
	return false
}

// uscisFile is a portal file assigned to a year. Fiscal-year files carry
// their quarter; monthly inventory files do not.
type uscisFile struct {
	url     string
	text    string
	year    string
	quarter string
}

// uscisEmployment captures employment-based petition data from the USCIS
// data portal, following pagination and organizing files by year under an
// employment_based subdirectory. The portal republishes old files on every
// page, so the manifest gate is what keeps re-runs incremental.
type uscisEmployment struct{}

func (uscisEmployment) Name() string { return "uscis_employment_data" }

func (uscisEmployment) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	base := portalURL(src.PageURL)
	env.Log.Info("Fetching portal pages", zap.String("base", base))

	var found []link.Link
	pages := 0
	for page := 0; page < maxPortalPages; page++ {
		pageURL := fmt.Sprintf("%s&page=%d", base, page)

		links, err := env.findLinks(ctx, pageURL, "a[href]")
		if err != nil {
			return err
		}
		pages++

		var pageFiles []link.Link
		for _, l := range links {
			if isEmploymentFile(l) {
				pageFiles = append(pageFiles, l)
			}
		}
		if len(pageFiles) == 0 {
			env.Log.Debug("No files on page, stopping", zap.Int("page", page))
			break
		}
		env.Log.Debug("Found files on page", zap.Int("page", page), zap.Int("count", len(pageFiles)))
		found = append(found, pageFiles...)

		if !hasNextLink(links) {
			env.Log.Debug("Reached last page", zap.Int("page", page))
			break
		}
	}
	env.Log.Info("Found employment files", zap.Int("count", len(found)), zap.Int("pages", pages))

	if len(found) == 0 {
		env.recordMiss(src, src.Group, base, manifest.StatusNoFilesFound, "No employment-based files found on any page")
		return nil
	}

	byYear := make(map[string][]uscisFile)
	for _, l := range found {
		f := uscisFile{url: l.URL, text: l.Text}
		if m := fyRe.FindStringSubmatch(l.URL); m != nil {
			f.year = m[1]
			if len(f.year) == 2 {
				f.year = "20" + f.year
			}
			if qm := quarterRe.FindStringSubmatch(l.URL); qm != nil {
				f.quarter = qm[1]
			}
		} else if m := monthYearRe.FindStringSubmatch(l.URL + " " + l.Text); m != nil {
			// Monthly EB inventory files are dated by month name.
			f.year = m[2]
		} else {
			f.year = strconv.Itoa(env.RunDate.Year())
		}
		byYear[f.year] = append(byYear[f.year], f)
	}

	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	downloaded := 0
	for _, year := range years {
		files := byYear[year]
		sort.SliceStable(files, func(i, j int) bool { return files[i].quarter > files[j].quarter })

		yearDir := filepath.Join(dir, "employment_based", year)
		if err := os.MkdirAll(yearDir, 0755); err != nil {
			return fmt.Errorf("creating year directory: %w", err)
		}
		env.Log.Info("Processing year", zap.String("year", year), zap.Int("files", len(files)))

		for _, f := range files {
			filename := link.Filename(f.url)
			dest := filepath.Join(yearDir, filename)

			if env.Manifest.HasCaptured(f.url, dest) {
				env.Log.Debug("Already captured", zap.String("file", filename))
				continue
			}

			if err := env.download(ctx, f.url, dest); err != nil {
				env.Log.Warn("Download failed", zap.String("url", f.url), zap.Error(err))
				continue
			}
			downloaded++

			detected := f.year + "-12-31"
			if f.quarter != "" {
				detected = f.year + "-09-30"
			}
			notes := f.text
			if notes == "" {
				notes = filename
			}
			if err := env.recordSuccess(src, src.Group, f.url, dest, detected, notes); err != nil {
				return err
			}
		}
	}
	env.Log.Info("Downloaded new files", zap.Int("count", downloaded))
	return nil
}
