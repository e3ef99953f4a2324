package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/filter"
	"github.com/pfrederiksen/labordata/internal/link"
	"github.com/pfrederiksen/labordata/internal/manifest"
	"github.com/pfrederiksen/labordata/internal/recency"
	"github.com/pfrederiksen/labordata/internal/textdate"
)

// monthlyStatsSelector narrows monthly IV statistics pages to their file
// links; everything else on those pages is navigation.
const monthlyStatsSelector = "a[href*='.xls'], a[href*='.pdf']"

// pdfLinks fetches a page and returns its PDF links, regex-filtered when
// the source configures filters.
func pdfLinks(ctx context.Context, env *Env, src config.Source, pageURL string) ([]link.Link, error) {
	links, err := env.findLinks(ctx, pageURL, "a[href]")
	if err != nil {
		return nil, err
	}
	var pdfs []link.Link
	for _, l := range links {
		if strings.HasSuffix(strings.ToLower(l.URL), ".pdf") {
			pdfs = append(pdfs, l)
		}
	}
	if len(src.RegexFilters) > 0 {
		pdfs = filter.Regex(pdfs, src.RegexFilters, env.Log)
	}
	return pdfs, nil
}

// visaBulletin walks the State Department's two-level bulletin structure:
// the hub page links to monthly bulletin pages, and each monthly page
// carries a printer-friendly PDF. Only the PDFs are captured.
type visaBulletin struct{}

func (visaBulletin) Name() string { return "visa_bulletin_multilevel" }

func (visaBulletin) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	env.Log.Info("Visiting hub", zap.String("url", src.PageURL))
	hubLinks, err := env.findLinks(ctx, src.PageURL, "a[href]")
	if err != nil {
		return err
	}

	var monthlyPages []link.Link
	for _, l := range hubLinks {
		if strings.Contains(strings.ToLower(l.URL), "visa-bulletin-for-") {
			monthlyPages = append(monthlyPages, l)
		}
	}
	if len(monthlyPages) == 0 {
		env.Log.Warn("No monthly bulletin page links found on hub")
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No monthly bulletin page links found on hub")
		return nil
	}
	env.Log.Info("Found monthly bulletin pages", zap.Int("count", len(monthlyPages)))

	var dated []link.Dated
	for _, l := range monthlyPages {
		when, ok := textdate.Extract(l.URL)
		if !ok {
			when, ok = textdate.Extract(l.Text)
		}
		if !ok {
			env.Log.Warn("Could not extract date from monthly page", zap.String("text", l.Text))
			continue
		}
		dated = append(dated, link.Dated{Link: l, Date: when})
	}
	if len(dated) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound,
			fmt.Sprintf("Found %d monthly pages but could not extract dates", len(monthlyPages)))
		return nil
	}

	recency.SortNewestFirst(dated)

	var pdfs []link.Dated
	for _, page := range dated {
		pageLinks, err := pdfLinks(ctx, env, src, page.URL)
		if err != nil {
			env.Log.Warn("Error processing monthly page", zap.String("url", page.URL), zap.Error(err))
			continue
		}
		for _, pdf := range pageLinks {
			filename := link.Filename(pdf.URL)
			when, ok := textdate.Extract(filename)
			if !ok {
				// Fall back to the monthly page's own date.
				when = page.Date
			}
			text := pdf.Text
			if text == "" {
				text = filename
			}
			pdfs = append(pdfs, link.Dated{Link: link.Link{URL: pdf.URL, Text: text}, Date: when})
			env.Log.Debug("Found PDF", zap.String("file", filename), zap.String("date", when.Format(dateLayout)))
		}
	}
	if len(pdfs) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound,
			fmt.Sprintf("Visited %d monthly pages but found no matching PDFs", len(dated)))
		return nil
	}

	recency.SortNewestFirst(pdfs)

	downloaded := 0
	for _, pdf := range pdfs {
		filename := link.Filename(pdf.URL)
		yearDir := filepath.Join(dir, strconv.Itoa(pdf.Date.Year()))
		if err := os.MkdirAll(yearDir, 0755); err != nil {
			return fmt.Errorf("creating year directory: %w", err)
		}
		dest := filepath.Join(yearDir, filename)

		if env.Manifest.HasCaptured(pdf.URL, dest) || exists(dest) {
			env.Log.Debug("Already captured", zap.String("file", filename))
			continue
		}

		if err := env.download(ctx, pdf.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", pdf.URL), zap.Error(err))
			continue
		}
		downloaded++

		if err := env.recordSuccess(src, src.Group, pdf.URL, dest, pdf.Date.Format(dateLayout), pdf.Text); err != nil {
			return err
		}
	}
	env.Log.Info("Downloaded new bulletin PDFs", zap.Int("count", downloaded))
	return nil
}

// yearFile is a downloadable found on an annual-report year page.
type yearFile struct {
	url  string
	text string
	year int
}

// visaAnnualReports walks the visa office report hub: year links lead to
// per-year pages whose statistical table PDFs are captured into year
// subfolders.
type visaAnnualReports struct{}

func (visaAnnualReports) Name() string { return "visa_annual_reports" }

// annualReportYears is the range of report years worth mirroring.
var annualReportYears = []int{2015, 2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023, 2024}

func (visaAnnualReports) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	env.Log.Info("Visiting hub", zap.String("url", src.PageURL))
	hubLinks, err := env.findLinks(ctx, src.PageURL, "a[href]")
	if err != nil {
		return err
	}

	var yearPages []yearFile
	for _, l := range hubLinks {
		for _, year := range annualReportYears {
			marker := fmt.Sprintf("-%d", year)
			if strings.Contains(l.URL, marker+".html") || strings.Contains(l.URL, marker) {
				yearPages = append(yearPages, yearFile{url: l.URL, text: l.Text, year: year})
				break
			}
		}
	}
	if len(yearPages) == 0 {
		env.Log.Warn("No year pages found", zap.String("source", src.Name))
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound,
			fmt.Sprintf("No year pages found for %d-%d", annualReportYears[0], annualReportYears[len(annualReportYears)-1]))
		return nil
	}
	env.Log.Info("Found year pages", zap.Int("count", len(yearPages)))

	sort.SliceStable(yearPages, func(i, j int) bool { return yearPages[i].year > yearPages[j].year })

	var files []yearFile
	for _, page := range yearPages {
		env.Log.Debug("Visiting year page", zap.Int("year", page.year))
		pageLinks, err := pdfLinks(ctx, env, src, page.url)
		if err != nil {
			env.Log.Warn("Error processing year page", zap.String("url", page.url), zap.Error(err))
			continue
		}
		for _, pdf := range pageLinks {
			text := pdf.Text
			if text == "" {
				text = link.Filename(pdf.URL)
			}
			files = append(files, yearFile{url: pdf.URL, text: text, year: page.year})
		}
	}
	if len(files) == 0 {
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound,
			fmt.Sprintf("Visited %d year pages but found no matching PDFs", len(yearPages)))
		return nil
	}
	env.Log.Info("Found report PDFs", zap.Int("count", len(files)))

	sort.SliceStable(files, func(i, j int) bool { return files[i].year > files[j].year })

	downloaded := 0
	for _, f := range files {
		filename := link.Filename(f.url)
		yearDir := filepath.Join(dir, strconv.Itoa(f.year))
		if err := os.MkdirAll(yearDir, 0755); err != nil {
			return fmt.Errorf("creating year directory: %w", err)
		}
		dest := filepath.Join(yearDir, filename)

		if env.Manifest.HasCaptured(f.url, dest) || exists(dest) {
			env.Log.Debug("Already captured", zap.String("file", filename))
			continue
		}

		if err := env.download(ctx, f.url, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", f.url), zap.Error(err))
			continue
		}
		downloaded++

		if err := env.recordSuccess(src, src.Group, f.url, dest, fmt.Sprintf("%d-12-31", f.year), f.text); err != nil {
			return err
		}
	}
	env.Log.Info("Downloaded new report PDFs", zap.Int("count", downloaded))
	return nil
}

// visaMonthly captures monthly immigrant visa issuance statistics, which
// are listed as one flat page of date-labeled spreadsheet and PDF links.
type visaMonthly struct{}

func (visaMonthly) Name() string { return "visa_statistics_monthly" }

func (visaMonthly) Run(ctx context.Context, env *Env, src config.Source) error {
	if src.PageURL == "" {
		env.Log.Warn("Missing page_url", zap.String("source", src.Name))
		return nil
	}
	dir, err := env.groupDir(src.Group)
	if err != nil {
		return err
	}

	selector := src.Selector
	if selector == "" {
		selector = monthlyStatsSelector
	}
	links, err := env.findLinks(ctx, src.PageURL, selector)
	if err != nil {
		return err
	}

	var dated []link.Dated
	for _, l := range filter.Downloadable(links) {
		// Generic duplicate anchors carry no date of their own.
		switch strings.ToLower(strings.TrimSpace(l.Text)) {
		case "excel", "click here", "pdf":
			continue
		}
		when, ok := textdate.Extract(l.Text)
		if !ok {
			continue
		}
		dated = append(dated, link.Dated{Link: l, Date: when})
	}
	if len(dated) == 0 {
		env.Log.Warn("No files found", zap.String("source", src.Name))
		env.recordMiss(src, src.Group, src.PageURL, manifest.StatusNoFilesFound, "No matching files found on page")
		return nil
	}
	env.Log.Info("Found dated file links", zap.Int("count", len(dated)))

	recency.SortNewestFirst(dated)

	downloaded := 0
	for _, dl := range dated {
		filename := link.Filename(dl.URL)
		yearDir := filepath.Join(dir, strconv.Itoa(dl.Date.Year()))
		if err := os.MkdirAll(yearDir, 0755); err != nil {
			return fmt.Errorf("creating year directory: %w", err)
		}
		dest := filepath.Join(yearDir, filename)

		if env.Manifest.HasCaptured(dl.URL, dest) || exists(dest) {
			env.Log.Debug("Already captured", zap.String("file", filename))
			continue
		}

		if err := env.download(ctx, dl.URL, dest); err != nil {
			env.Log.Warn("Download failed", zap.String("url", dl.URL), zap.Error(err))
			continue
		}
		downloaded++

		if err := env.recordSuccess(src, src.Group, dl.URL, dest, dl.Date.Format(dateLayout), dl.Text); err != nil {
			return err
		}
	}
	env.Log.Info("Downloaded new statistics files", zap.Int("count", downloaded))
	return nil
}
