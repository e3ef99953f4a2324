package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/harvest"
	"github.com/pfrederiksen/labordata/internal/manifest"
	"github.com/pfrederiksen/labordata/internal/metrics"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// maxFailuresShown caps the failure list in the text summary.
const maxFailuresShown = 5

// WriteOutput writes the run report in the specified format
func WriteOutput(w io.Writer, report *harvest.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs the report as JSON
func writeJSON(w io.Writer, report *harvest.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// writeText outputs the run summary as human-readable text
func writeText(w io.Writer, report *harvest.Report, verbose bool) error {
	banner := "============================================================"
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintln(w, "RUN SUMMARY")
	fmt.Fprintln(w, banner)

	counts := make(map[string]int)
	var failures, skipped []manifest.Entry
	for _, e := range report.Entries {
		switch e.Status {
		case manifest.StatusSuccess:
			counts[e.Group]++
		case manifest.StatusError, manifest.StatusDownloadFailed:
			failures = append(failures, e)
		case manifest.StatusSkipped:
			skipped = append(skipped, e)
		}
	}

	if len(counts) > 0 {
		fmt.Fprintln(w, "\nFiles downloaded by group:")
		groups := make([]string, 0, len(counts))
		for g := range counts {
			groups = append(groups, g)
		}
		sort.Strings(groups)

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Group", "Files"})
		for _, g := range groups {
			t.AppendRow(table.Row{g, counts[g]})
		}
		t.Render()
	}

	if len(failures) > 0 {
		fmt.Fprintf(w, "\nFailures: %d\n", len(failures))
		shown := failures
		if len(shown) > maxFailuresShown {
			shown = shown[:maxFailuresShown]
		}
		for _, f := range shown {
			fmt.Fprintf(w, "  ✗ %s: %s\n", f.Name, f.Notes)
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped (requires auth): %d\n", len(skipped))
		for _, s := range skipped {
			fmt.Fprintf(w, "  ⊘ %s\n", s.Name)
		}
	}

	fmt.Fprintf(w, "\nTotal successful downloads: %d\n", report.NewCaptures)
	fmt.Fprintf(w, "Total tracked files: %d\n", report.TotalTracked)
	if report.ZipPath != "" {
		fmt.Fprintf(w, "Archive created: %s\n", report.ZipPath)
	}
	fmt.Fprintf(w, "%s\n", banner)

	if verbose {
		writeMetrics(w, report.Metrics)
	}
	return nil
}

// writeMetrics appends the run's counters and timings for verbose mode.
func writeMetrics(w io.Writer, snap metrics.Snapshot) {
	if len(snap.Counters) == 0 && len(snap.Timings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRun metrics:")

	names := make([]string, 0, len(snap.Counters))
	for name := range snap.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %d\n", name, snap.Counters[name])
	}

	names = names[:0]
	for name := range snap.Timings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := snap.Timings[name]
		fmt.Fprintf(w, "  %-24s %d calls, avg %s\n",
			name, ts.Count, ts.Average.Round(time.Millisecond))
	}
}

// WriteSources renders the configured sources as a table.
func WriteSources(w io.Writer, sources []config.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Group", "Method", "URL"})
	for _, src := range sources {
		t.AppendRow(table.Row{src.Name, src.Group, src.Method, displayURL(src)})
	}
	t.Render()
	fmt.Fprintf(w, "%d sources configured\n", len(sources))
}

// displayURL picks the most useful URL a source exposes.
func displayURL(src config.Source) string {
	if pages := src.Pages(); len(pages) > 0 {
		return pages[0]
	}
	if u := src.DirectURL(); u != "" {
		return u
	}
	return src.APIEndpoint
}
