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
	"github.com/pfrederiksen/labordata/internal/textdate"
)

var (
	fyRe      = regexp.MustCompile(`(?i)fy(\d{2,4})`)
	quarterRe = regexp.MustCompile(`(?i)q(\d)`)
)

// docExts are the document extensions disclosure pages link to. Matched as
// substrings so versioned URLs like report.xlsx?dl=1 still qualify.
var docExts = []string{".xlsx", ".xls", ".pdf", ".doc", ".docx"}

func hasDocExt(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, ext := range docExts {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// isLCAFile reports whether a link is LCA disclosure data or one of its
// companion layout documents. Statistics summaries are excluded; the raw
// disclosure workbooks are what matter.
func isLCAFile(l link.Link) bool {
	if !hasDocExt(l.URL) {
		return false
	}
	combined := strings.ToLower(l.URL + " " + l.Text)
	if !containsAny(combined, "lca", "h-1b", "h1b") {
		return false
	}
	if !containsAny(combined, "disclosure", "record", "layout", "appendix", "worksite") && !fyRe.MatchString(combined) {
		return false
	}
	lowerText := strings.ToLower(l.Text)
	return !strings.Contains(lowerText, "selected") && !strings.Contains(lowerText, "statistics")
}

// isPERMFile reports whether a link is PERM disclosure data or one of its
// companion documents.
func isPERMFile(l link.Link) bool {
	if !hasDocExt(l.URL) {
		return false
	}
	combined := strings.ToLower(l.URL + " " + l.Text)
	if !strings.Contains(combined, "perm") {
		return false
	}
	return containsAny(combined, "disclosure", "record", "layout", "statistics", "selected") || fyRe.MatchString(combined)
}

// fiscalFile is a disclosure file assigned to a fiscal year.
type fiscalFile struct {
	url     string
	text    string
	quarter string
}

// groupByFiscalYear indexes files by the fiscal year in their URL.
// Two-digit years normalize to 20xx; files with no FY marker are dropped.
func groupByFiscalYear(links []link.Link) map[string][]fiscalFile {
	byYear := make(map[string][]fiscalFile)
	for _, l := range links {
		m := fyRe.FindStringSubmatch(l.URL)
		if m == nil {
			continue
		}
		year := m[1]
		if len(year) == 2 {
			year = "20" + year
		}
		quarter := ""
		if qm := quarterRe.FindStringSubmatch(l.URL); qm != nil {
			quarter = qm[1]
		}
		byYear[year] = append(byYear[year], fiscalFile{url: l.URL, text: l.Text, quarter: quarter})
	}
	return byYear
}

// downloadFiscal downloads FY-grouped files into baseDir/FY{year}/ newest
// year first, quarters descending within a year, and records each success
// dated to the fiscal year end (Sep 30).
func downloadFiscal(ctx context.Context, env *Env, src config.Source, baseDir string, byYear map[string][]fiscalFile) (int, error) {
	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	downloaded := 0
	for _, year := range years {
		files := byYear[year]
		sort.SliceStable(files, func(i, j int) bool { return files[i].quarter > files[j].quarter })

		fyDir := filepath.Join(baseDir, "FY"+year)
		if err := os.MkdirAll(fyDir, 0755); err != nil {
			return downloaded, fmt.Errorf("creating fiscal year directory: %w", err)
		}
		env.Log.Info("Processing fiscal year", zap.String("year", year), zap.Int("files", len(files)))

		fy, _ := strconv.Atoi(year)
		detected := textdate.FiscalYearEnd(fy).Format(dateLayout)

		for _, f := range files {
			filename := link.Filename(f.url)
			dest := filepath.Join(fyDir, filename)

			if env.Manifest.HasCaptured(f.url, dest) || exists(dest) {
				env.Log.Debug("Already captured", zap.String("file", filename))
				continue
			}

			if err := env.download(ctx, f.url, dest); err != nil {
				env.Log.Warn("Download failed", zap.String("url", f.url), zap.Error(err))
				continue
			}
			downloaded++

			notes := f.text
			if notes == "" {
				notes = filename
			}
			if err := env.recordSuccess(src, src.Group, f.url, dest, detected, notes); err != nil {
				return downloaded, err
			}
		}
	}
	return downloaded, nil
}

// lcaDisclosure captures quarterly LCA disclosure workbooks and their
// record layout documents from the OFLC performance page, organized by
// fiscal year.
type lcaDisclosure struct{}

func (lcaDisclosure) Name() string { return "lca_disclosure_data" }

func (lcaDisclosure) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	links, err := env.findLinks(ctx, src.PageURL, "a[href]")
	if err != nil {
		return err
	}

	var lcaFiles []link.Link
	for _, l := range links {
		if isLCAFile(l) {
			lcaFiles = append(lcaFiles, l)
		}
	}
	env.Log.Info("Found disclosure files", zap.Int("count", len(lcaFiles)))
	if len(lcaFiles) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No LCA disclosure data files found on page")
		return nil
	}

	byYear := groupByFiscalYear(lcaFiles)
	if len(byYear) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No files with FY pattern found")
		return nil
	}

	downloaded, err := downloadFiscal(ctx, env, src, dir, byYear)
	if err != nil {
		return err
	}
	env.Log.Info("Downloaded new files", zap.Int("count", downloaded))
	return nil
}

// permDisclosure captures yearly PERM disclosure workbooks under a PERM
// subdirectory, organized by fiscal year.
type permDisclosure struct{}

func (permDisclosure) Name() string { return "perm_disclosure_data" }

func (permDisclosure) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	links, err := env.findLinks(ctx, src.PageURL, "a[href]")
	if err != nil {
		return err
	}

	var permFiles []link.Link
	for _, l := range links {
		if isPERMFile(l) {
			permFiles = append(permFiles, l)
		}
	}
	env.Log.Info("Found disclosure files", zap.Int("count", len(permFiles)))
	if len(permFiles) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No PERM disclosure data files found on page")
		return nil
	}

	byYear := groupByFiscalYear(permFiles)
	if len(byYear) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No files with FY pattern found")
		return nil
	}

	downloaded, err := downloadFiscal(ctx, env, src, filepath.Join(dir, "PERM"), byYear)
	if err != nil {
		return err
	}
	env.Log.Info("Downloaded new files", zap.Int("count", downloaded))
	return nil
}
